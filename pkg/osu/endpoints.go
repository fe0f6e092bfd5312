package osu

import (
	"fmt"
	"net/url"
	"strings"
)

// RecentScoresLimit is the page size requested for recent scores; the API
// caps recent plays at 100.
const RecentScoresLimit = 50

// GetUserURL returns the v1 get_user URL for a display name
func GetUserURL(base, apiKey, name string) string {
	params := url.Values{}
	params.Set("k", apiKey)
	params.Set("u", name)
	params.Set("type", "string")
	return fmt.Sprintf("%s/get_user?%s", strings.TrimRight(base, "/"), params.Encode())
}

// RecentScoresURL returns the v2 recent scores URL for a user id
func RecentScoresURL(base string, userID int, includeFails bool, limit int) string {
	params := url.Values{}
	if includeFails {
		params.Set("include_fails", "1")
	}
	params.Set("mode", "osu")
	params.Set("limit", fmt.Sprint(limit))
	return fmt.Sprintf("%s/users/%d/scores/recent?%s", strings.TrimRight(base, "/"), userID, params.Encode())
}
