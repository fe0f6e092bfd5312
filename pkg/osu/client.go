package osu

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"osufetch/pkg/config"
	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/httpclient"
	"osufetch/pkg/logger"
	"osufetch/pkg/models"
	"osufetch/pkg/retry"
)

// Client talks to the osu! API. Identity lookups use the v1 API key;
// recent scores use v2 with a client-credentials token.
type Client struct {
	cfg    config.OsuConfig
	http   *httpclient.Client
	tokens oauth2.TokenSource
	retry  *retry.Config
	logger logger.Logger
}

// NewClient creates a Client. The token source shares hc's transport.
func NewClient(cfg config.OsuConfig, hc *httpclient.Client, retryCfg *retry.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{"public"},
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, hc.HTTPClient())

	return &Client{
		cfg:    cfg,
		http:   hc,
		tokens: cc.TokenSource(tokenCtx),
		retry:  retryCfg,
		logger: log.WithField("component", "osu_api"),
	}
}

// GetUser looks a user up by display name. It returns a not_found error
// when the API answers with no users.
func (c *Client) GetUser(ctx context.Context, name string) (*models.User, error) {
	url := GetUserURL(c.cfg.APIv1URL, c.cfg.APIKey, name)

	users, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]models.User, error) {
		var users []models.User
		err := c.http.GetJSON(ctx, url, nil, &users)
		return users, err
	}, c.retry)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apperrors.NotFound(fmt.Sprintf("user %q", name))
	}
	return &users[0], nil
}

// RecentScores returns the user's most recent plays, newest first
func (c *Client) RecentScores(ctx context.Context, userID int, includeFails bool) ([]models.Score, error) {
	url := RecentScoresURL(c.cfg.APIv2URL, userID, includeFails, RecentScoresLimit)

	return retry.DoWithResult(ctx, func(ctx context.Context) ([]models.Score, error) {
		header, err := c.authHeader()
		if err != nil {
			return nil, err
		}
		var scores []models.Score
		err = c.http.GetJSON(ctx, url, header, &scores)
		return scores, err
	}, c.retry)
}

func (c *Client) authHeader() (http.Header, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeAuth, err, "failed to obtain osu! API token")
	}
	h := http.Header{}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return h, nil
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
