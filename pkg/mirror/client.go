// Package mirror downloads beatmap set archives from a beatmap mirror.
package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "osufetch/pkg/errors"
	"osufetch/pkg/httpclient"
	"osufetch/pkg/logger"
)

// Client fetches .osz archives by beatmap set id
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  logger.Logger
}

// NewClient creates a mirror client rooted at baseURL
func NewClient(baseURL string, hc *httpclient.Client, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  log.WithField("component", "mirror"),
	}
}

// DownloadURL returns the archive URL for a set
func (c *Client) DownloadURL(setID int) string {
	return fmt.Sprintf("%s/v1/download/%d", c.baseURL, setID)
}

// Download opens the archive for setID. The caller must close the returned
// body. Any failure is a download_failed error carrying the HTTP status when
// one was received.
func (c *Client) Download(ctx context.Context, setID int) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, c.DownloadURL(setID), nil)
	if err != nil {
		return nil, apperrors.DownloadFailed(0, err, fmt.Sprintf("set %d", setID))
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, apperrors.DownloadFailed(apperrors.StatusCode(err), err, fmt.Sprintf("set %d", setID))
	}

	c.logger.DebugWithFields("Mirror responded", map[string]interface{}{
		"set_id":         setID,
		"status":         resp.StatusCode,
		"content_length": resp.ContentLength,
	})
	return resp.Body, nil
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
