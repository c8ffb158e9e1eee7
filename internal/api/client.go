package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conduit-dev/conduit/internal/auth"
	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

// Doer executes an HTTP request. Satisfied by auth.Client (bearer tokens
// with refresh-retry) and by apiKeyDoer (static key from the environment).
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the Conduit Cloud API.
type Client struct {
	baseURL string
	doer    Doer
}

// NewClient creates an API client over the given transport.
func NewClient(baseURL string, doer Doer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
	}
}

// NewWithAPIKey creates an API client that authenticates with a static
// API key instead of OAuth tokens. Used when CONDUIT_API_KEY is set.
func NewWithAPIKey(baseURL, apiKey string) *Client {
	return NewClient(baseURL, &apiKeyDoer{
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	})
}

type apiKeyDoer struct {
	apiKey string
	http   *http.Client
}

func (d *apiKeyDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	clone := req.Clone(ctx)
	clone.Header.Set("Authorization", "Bearer "+d.apiKey)
	resp, err := d.http.Do(clone)
	if err != nil {
		return nil, apperrors.NewTransportError("request failed", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, apperrors.NewUnauthorizedError("API key rejected; check CONDUIT_API_KEY", nil)
	}
	return resp, nil
}

// Profile fetches the signed-in developer's profile.
func (c *Client) Profile(ctx context.Context) (*auth.UserData, error) {
	var user auth.UserData
	if err := c.get(ctx, "/v1/profile", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Organizations lists the organizations the developer belongs to.
func (c *Client) Organizations(ctx context.Context) ([]Organization, error) {
	var resp organizationsResponse
	if err := c.get(ctx, "/v1/organizations", &resp); err != nil {
		return nil, err
	}
	return resp.Organizations, nil
}

// Projects lists the projects in an organization.
func (c *Client) Projects(ctx context.Context, orgID string) ([]Project, error) {
	if orgID == "" {
		return nil, apperrors.NewConfigurationError("organization ID is required", nil)
	}
	var resp projectsResponse
	path := "/v1/organizations/" + url.PathEscape(orgID) + "/projects"
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// CreateAPIKey mints a fresh API key for a project. The key is returned
// exactly once; it is handed to the installer via environment.
func (c *Client) CreateAPIKey(ctx context.Context, projectID string) (*APIKey, error) {
	if projectID == "" {
		return nil, apperrors.NewConfigurationError("project ID is required", nil)
	}
	var key APIKey
	path := "/v1/projects/" + url.PathEscape(projectID) + "/api-keys"
	if err := c.post(ctx, path, nil, &key); err != nil {
		return nil, err
	}
	if key.Key == "" {
		return nil, apperrors.NewProviderError("API key response missing key", nil)
	}
	return &key, nil
}

// LatestMCPConnection fetches the most recent MCP connection recorded for
// a project, or nil if none exists yet.
func (c *Client) LatestMCPConnection(ctx context.Context, projectID string) (*MCPConnection, error) {
	var conn MCPConnection
	path := "/v1/projects/" + url.PathEscape(projectID) + "/mcp/connections/latest"
	err := c.get(ctx, path, &conn)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

// BaseURL returns the base URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewNotFoundError(fmt.Sprintf("%s not found", path), nil)
	case resp.StatusCode >= 400:
		return apperrors.NewProviderError(
			fmt.Sprintf("%s %s returned HTTP %d: %s", method, path, resp.StatusCode, apiErrorMessage(respBody)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

// apiErrorMessage pulls the message field out of an error body, falling
// back to a truncated raw body.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
