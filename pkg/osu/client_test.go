package osu

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osufetch/pkg/config"
	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/httpclient"
	"osufetch/pkg/logger"
	"osufetch/pkg/retry"
)

type fakeAPI struct {
	tokenCalls  atomic.Int32
	scoreCalls  atomic.Int32
	failScores  atomic.Int32
	limitScores atomic.Int32
	userPayload string

	mu         sync.Mutex
	scoreTimes []time.Time
}

func (f *fakeAPI) scoreRequestTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.scoreTimes...)
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"tok123","token_type":"Bearer","expires_in":86400}`)
	})
	mux.HandleFunc("/api/get_user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("k"))
		assert.Equal(t, "string", r.URL.Query().Get("type"))
		io.WriteString(w, f.userPayload)
	})
	mux.HandleFunc("/api/v2/users/7562902/scores/recent", func(w http.ResponseWriter, r *http.Request) {
		f.scoreCalls.Add(1)
		f.mu.Lock()
		f.scoreTimes = append(f.scoreTimes, time.Now())
		f.mu.Unlock()
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("include_fails"))
		if f.limitScores.Load() > 0 {
			f.limitScores.Add(-1)
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if f.failScores.Load() > 0 {
			f.failScores.Add(-1)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `[
			{"id":1,"passed":true,"rank":"S","beatmapset":{"id":39804,"title":"FREEDOM DiVE"}},
			{"id":2,"passed":false,"rank":"F","beatmapset":null}
		]`)
	})
	return mux
}

func newClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig().Osu
	cfg.APIKey = "key"
	cfg.ClientID = "1"
	cfg.ClientSecret = "secret"
	cfg.APIv1URL = server.URL + "/api"
	cfg.APIv2URL = server.URL + "/api/v2"
	cfg.TokenURL = server.URL + "/oauth/token"

	hc := httpclient.New(httpclient.Options{
		Name:           "osu",
		Timeout:        5 * time.Second,
		CircuitBreaker: config.DefaultConfig().CircuitBreaker,
	}, logger.NewNopLogger())
	rc := &retry.Config{MaxAttempts: 3, Backoff: &retry.ConstantBackoff{Delay: time.Millisecond}}
	return NewClient(cfg, hc, rc, logger.NewNopLogger())
}

func TestGetUser(t *testing.T) {
	api := &fakeAPI{userPayload: `[{"user_id":"7562902","username":"mrekk","country":"AU"}]`}
	c := newClient(t, api)

	user, err := c.GetUser(context.Background(), "mrekk")
	require.NoError(t, err)
	assert.Equal(t, 7562902, user.UserID)
	assert.Equal(t, "mrekk", user.Username)
}

func TestGetUserNotFound(t *testing.T) {
	c := newClient(t, &fakeAPI{userPayload: `[]`})

	_, err := c.GetUser(context.Background(), "ghost")
	assert.True(t, apperrors.IsKind(err, apperrors.ErrorTypeNotFound))
}

func TestGetUserMalformed(t *testing.T) {
	c := newClient(t, &fakeAPI{userPayload: `{"error":"Please provide a valid API key."}`})

	_, err := c.GetUser(context.Background(), "mrekk")
	assert.True(t, apperrors.IsKind(err, apperrors.ErrorTypeParsing))
}

func TestRecentScores(t *testing.T) {
	api := &fakeAPI{}
	c := newClient(t, api)

	scores, err := c.RecentScores(context.Background(), 7562902, true)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	id, ok := scores[0].SetID()
	assert.True(t, ok)
	assert.Equal(t, 39804, id)
	_, ok = scores[1].SetID()
	assert.False(t, ok)
	assert.True(t, scores[1].Failed())

	_, err = c.RecentScores(context.Background(), 7562902, true)
	require.NoError(t, err)
	// token is reused until it expires
	assert.Equal(t, int32(1), api.tokenCalls.Load())
}

func TestRecentScoresRetriesServerErrors(t *testing.T) {
	api := &fakeAPI{}
	api.failScores.Store(2)
	c := newClient(t, api)

	scores, err := c.RecentScores(context.Background(), 7562902, true)
	require.NoError(t, err)
	assert.Len(t, scores, 2)
	assert.Equal(t, int32(3), api.scoreCalls.Load())
}

func TestRecentScoresWaitsForRetryAfter(t *testing.T) {
	api := &fakeAPI{}
	api.limitScores.Store(1)
	c := newClient(t, api)

	scores, err := c.RecentScores(context.Background(), 7562902, true)
	require.NoError(t, err)
	assert.Len(t, scores, 2)

	times := api.scoreRequestTimes()
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), time.Second,
		"retry must not come back before the server's Retry-After")
}

func TestEndpoints(t *testing.T) {
	u, err := url.Parse(GetUserURL("https://osu.ppy.sh/api/", "k3y", "Some Name"))
	require.NoError(t, err)
	assert.Equal(t, "/api/get_user", u.Path)
	assert.Equal(t, "Some Name", u.Query().Get("u"))

	assert.Equal(t,
		"https://osu.ppy.sh/api/v2/users/2/scores/recent?limit=50&mode=osu",
		RecentScoresURL("https://osu.ppy.sh/api/v2", 2, false, RecentScoresLimit))
}
