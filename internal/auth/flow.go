package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/browser"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
	"github.com/conduit-dev/conduit/internal/events"
	"github.com/conduit-dev/conduit/internal/logger"
)

// LoginTimeout bounds how long Login waits for the browser redirect.
const LoginTimeout = 5 * time.Minute

// FlowConfig holds configuration for one login attempt.
type FlowConfig struct {
	// ClientID is the registered OAuth client ID. Required.
	ClientID string

	// AuthBaseURL is the base URL of the authorization server.
	AuthBaseURL string

	// APIBaseURL is the base URL used for the post-login profile fetch.
	APIBaseURL string

	// CallbackPort is the fixed loopback port the registration expects.
	CallbackPort int

	// Scope is the space-separated scope string to request.
	Scope string

	// Store receives the tokens and profile on success.
	Store CredentialStore

	// Bus, when set, receives an auth-changed event on success.
	Bus *events.Bus

	// HTTPClient overrides the default client (used in tests).
	HTTPClient *http.Client

	// OpenBrowser overrides how the authorization URL is opened
	// (used in tests). Defaults to the system browser.
	OpenBrowser func(url string) error
}

// Flow orchestrates a single authorization-code+PKCE login.
// Not reusable: create a new Flow per attempt.
type Flow struct {
	config   FlowConfig
	pkce     *PKCE
	state    string
	callback *CallbackServer
	teardown sync.Once
}

// TokenResponse is the response from the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// NewFlow creates a new login flow.
func NewFlow(config FlowConfig) *Flow {
	return &Flow{config: config}
}

func (f *Flow) httpClient() *http.Client {
	if f.config.HTTPClient != nil {
		return f.config.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Login executes the full flow:
// 1. Validate configuration
// 2. Generate PKCE and state
// 3. Start the loopback callback server
// 4. Open the browser at the authorization URL
// 5. Wait for the redirect and validate state
// 6. Exchange the code for tokens
// 7. Fetch the profile and persist everything
func (f *Flow) Login(ctx context.Context) (*StoredAuth, error) {
	if f.config.ClientID == "" {
		return nil, apperrors.NewConfigurationError(
			"oauth client ID is not configured; set oauth_client_id in config", nil)
	}

	var err error
	f.pkce, err = NewPKCE()
	if err != nil {
		return nil, fmt.Errorf("generate PKCE: %w", err)
	}

	f.state, err = GenerateState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	// The listener must be up before the browser opens, otherwise the
	// redirect can race the bind and land on a closed port.
	f.callback, err = NewCallbackServer(f.config.CallbackPort)
	if err != nil {
		return nil, err
	}
	if err := f.callback.Start(); err != nil {
		f.stopCallback()
		return nil, fmt.Errorf("start callback server: %w", err)
	}
	defer f.stopCallback()

	redirectURI := f.callback.RedirectURI()
	authURL := f.buildAuthorizationURL(redirectURI)

	open := f.config.OpenBrowser
	if open == nil {
		open = browser.OpenURL
	}
	if err := open(authURL); err != nil {
		return nil, apperrors.NewTransportError(
			fmt.Sprintf("could not open browser; visit %s manually", authURL), err)
	}

	logger.Info("waiting for browser sign-in")

	callbackCtx, cancel := context.WithTimeout(ctx, LoginTimeout)
	defer cancel()

	result, err := f.callback.Wait(callbackCtx)
	if err != nil {
		if callbackCtx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewTimeoutError("sign-in timed out waiting for browser", err)
		}
		return nil, apperrors.NewCancelledError("sign-in cancelled", err)
	}

	if result.Error != "" {
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("authorization failed: %s: %s", result.Error, result.ErrorDescription), nil)
	}

	// State must match before any exchange happens.
	if result.State != f.state {
		return nil, apperrors.NewSecurityError("state mismatch in OAuth callback", nil)
	}

	if result.Code == "" {
		return nil, apperrors.NewProviderError("no authorization code received", nil)
	}

	tokens, err := f.exchangeCode(ctx, result.Code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	auth := &StoredAuth{Tokens: tokenSetFromResponse(tokens)}

	// Profile fetch failure is not fatal; the tokens are already good
	// and whoami can re-fetch later.
	user, err := fetchProfile(ctx, f.httpClient(), f.config.APIBaseURL, auth.Tokens.AccessToken)
	if err != nil {
		logger.Warnf("could not fetch profile after login: %v", err)
	} else {
		auth.User = user
	}

	if err := f.config.Store.Put(auth); err != nil {
		return nil, fmt.Errorf("store credentials: %w", err)
	}

	logger.Debugf("login complete, access token %s", logger.Redact(auth.Tokens.AccessToken))

	if f.config.Bus != nil {
		email := ""
		if auth.User != nil {
			email = auth.User.Email
		}
		f.config.Bus.Publish(events.NewAuthChangedEvent(true, email))
	}

	return auth, nil
}

// stopCallback shuts the callback server down exactly once, so both
// error paths and the deferred cleanup can call it safely.
func (f *Flow) stopCallback() {
	f.teardown.Do(func() {
		if f.callback != nil {
			_ = f.callback.Stop()
		}
	})
}

// buildAuthorizationURL constructs the authorization URL.
func (f *Flow) buildAuthorizationURL(redirectURI string) string {
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {f.config.ClientID},
		"redirect_uri":          {redirectURI},
		"state":                 {f.state},
		"code_challenge":        {f.pkce.Challenge},
		"code_challenge_method": {f.pkce.Method},
	}

	if f.config.Scope != "" {
		params.Set("scope", f.config.Scope)
	}

	return f.config.AuthBaseURL + "/oauth/authorize?" + params.Encode()
}

// exchangeCode exchanges the authorization code for tokens.
func (f *Flow) exchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	return doTokenRequest(ctx, f.httpClient(), f.config.AuthBaseURL, map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  redirectURI,
		"code_verifier": f.pkce.Verifier,
		"client_id":     f.config.ClientID,
	})
}

// refreshTokens obtains a new token set using a refresh token.
func refreshTokens(ctx context.Context, client *http.Client, authBaseURL, clientID, refreshToken string) (*TokenResponse, error) {
	return doTokenRequest(ctx, client, authBaseURL, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     clientID,
	})
}

// doTokenRequest posts a JSON body to the token endpoint. The Conduit
// authorization server takes JSON, not form encoding.
func doTokenRequest(ctx context.Context, client *http.Client, authBaseURL string, params map[string]string) (*TokenResponse, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", authBaseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportError("token endpoint unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return nil, apperrors.NewUnauthorizedError(
			fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("token endpoint returned HTTP %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var tokens TokenResponse
	if err := json.Unmarshal(respBody, &tokens); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if tokens.AccessToken == "" {
		return nil, apperrors.NewProviderError("token response missing access_token", nil)
	}

	return &tokens, nil
}

// tokenSetFromResponse converts a wire token response into a TokenSet,
// computing the absolute expiry timestamp.
func tokenSetFromResponse(tr *TokenResponse) TokenSet {
	return TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expiryFrom(tr.ExpiresIn),
	}
}

// fetchProfile retrieves the signed-in developer's profile.
func fetchProfile(ctx context.Context, client *http.Client, apiBaseURL, accessToken string) (*UserData, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", apiBaseURL+"/v1/profile", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportError("profile endpoint unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProviderError(
			fmt.Sprintf("profile endpoint returned HTTP %d", resp.StatusCode), nil)
	}

	var user UserData
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1024*1024)).Decode(&user); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	return &user, nil
}
