package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

// Client is an HTTP client that attaches bearer tokens and transparently
// retries once after a 401 by forcing a token refresh. A second 401 means
// the session is gone and the caller gets an unauthorized error.
type Client struct {
	manager *Manager
	http    *http.Client
}

// NewClient creates an authenticated HTTP client over the manager.
func NewClient(manager *Manager) *Client {
	return &Client{
		manager: manager,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient overrides the underlying transport (used in tests).
func (c *Client) SetHTTPClient(h *http.Client) {
	c.http = h
}

// Do executes the request with a bearer token. The request body, if any,
// must be replayable; Do buffers it so the post-refresh retry can resend.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	token, err := c.manager.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, req, bodyBytes, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// One refresh-and-retry. The server may have revoked the token
	// before its stated expiry.
	resp.Body.Close()

	token, err = c.manager.ForceRefresh(ctx)
	if err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, req, bodyBytes, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, apperrors.NewUnauthorizedError("request rejected after token refresh; run `conduit login`", nil)
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, req *http.Request, body []byte, token string) (*http.Response, error) {
	clone := req.Clone(ctx)
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
	}
	clone.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(clone)
	if err != nil {
		return nil, apperrors.NewTransportError("request failed", err)
	}
	return resp, nil
}
