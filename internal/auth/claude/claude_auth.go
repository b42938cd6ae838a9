// Package claude provides authentication and token management functionality
// for the Anthropic API. It handles the PKCE OAuth flow, including token
// refresh and HTTP client configuration for the OAuth endpoints.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// Anthropic OAuth endpoints and the public client registration used by
	// Claude Code.
	claudeAuthURL  = "https://claude.ai/oauth/authorize"
	claudeTokenURL = "https://console.anthropic.com/v1/oauth/token"
	claudeClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

	// claudeRedirectURL is the manual-copy callback page shown after consent.
	claudeRedirectURL = "https://console.anthropic.com/oauth/code/callback"
)

// claudeScopes lists the OAuth scopes requested during login.
var claudeScopes = []string{"org:create_api_key", "user:profile", "user:inference"}

// ClaudeAuth provides methods for handling Claude authentication flows.
// It encapsulates the logic for refreshing tokens, running the PKCE login,
// and talking to the Anthropic OAuth endpoints.
type ClaudeAuth struct {
	httpClient *http.Client
}

// NewClaudeAuth creates a new instance of ClaudeAuth. A non-empty proxyURL
// is applied to every request made against the OAuth endpoints.
func NewClaudeAuth(proxyURL string) *ClaudeAuth {
	client := &http.Client{Timeout: 30 * time.Second}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			client.Transport = &http.Transport{
				Proxy: http.ProxyURL(parsed),
			}
		} else {
			log.Warnf("[Claude Auth] Invalid proxy URL: %s", proxyURL)
		}
	}
	return &ClaudeAuth{httpClient: client}
}

// oauthConfig returns the static OAuth client description shared by the
// authorization URL builder and the code exchange.
func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    claudeClientID,
		RedirectURL: claudeRedirectURL,
		Scopes:      claudeScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  claudeAuthURL,
			TokenURL: claudeTokenURL,
		},
	}
}

// AuthorizationURL builds the PKCE authorization URL for the interactive
// login together with the verifier the later code exchange must present.
//
// Parameters:
//   - state: A random value echoed back by the callback page
//
// Returns:
//   - string: The authorization URL to open in a browser
//   - string: The PKCE verifier for ExchangeCode
func (a *ClaudeAuth) AuthorizationURL(state string) (string, string) {
	verifier := oauth2.GenerateVerifier()
	authURL := oauthConfig().AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("code", "true"),
	)
	return authURL, verifier
}

// ExchangeCode trades an authorization code for a token set.
//
// Parameters:
//   - ctx: The context for the exchange request
//   - code: The authorization code from the callback page
//   - state: The state value sent with the authorization URL
//   - verifier: The PKCE verifier returned by AuthorizationURL
//
// Returns:
//   - *ClaudeTokenStorage: The freshly issued token set
//   - error: An error if the exchange fails, nil otherwise
func (a *ClaudeAuth) ExchangeCode(ctx context.Context, code, state, verifier string) (*ClaudeTokenStorage, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is empty")
	}
	requestBody := map[string]interface{}{
		"grant_type":    "authorization_code",
		"code":          code,
		"state":         state,
		"client_id":     claudeClientID,
		"redirect_uri":  claudeRedirectURL,
		"code_verifier": verifier,
	}
	return a.doTokenRequest(ctx, requestBody)
}

// RefreshTokens obtains a fresh access token using the refresh token.
//
// Parameters:
//   - ctx: The context for the refresh request
//   - refreshToken: The refresh token from a previous login or refresh
//
// Returns:
//   - *ClaudeTokenStorage: The refreshed token set
//   - error: An error if the refresh fails, nil otherwise
func (a *ClaudeAuth) RefreshTokens(ctx context.Context, refreshToken string) (*ClaudeTokenStorage, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}
	requestBody := map[string]interface{}{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     claudeClientID,
	}
	token, err := a.doTokenRequest(ctx, requestBody)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	log.Info("[Claude Auth] Token refreshed successfully")
	return token, nil
}

// RefreshIfNeeded refreshes ts in place when it is expired or close to
// expiry. It reports whether a refresh happened so callers can persist the
// updated token.
func (a *ClaudeAuth) RefreshIfNeeded(ctx context.Context, ts *ClaudeTokenStorage) (bool, error) {
	if ts == nil {
		return false, fmt.Errorf("token storage is nil")
	}
	if !ts.IsExpired() {
		return false, nil
	}
	log.Info("[Claude Auth] Token is expired or near expiry, refreshing...")
	refreshed, err := a.RefreshTokens(ctx, ts.RefreshToken)
	if err != nil {
		return false, fmt.Errorf("failed to refresh token: %w", err)
	}
	ts.AccessToken = refreshed.AccessToken
	ts.RefreshToken = refreshed.RefreshToken
	if refreshed.Email != "" {
		ts.Email = refreshed.Email
	}
	ts.ExpiresAt = refreshed.ExpiresAt
	return true, nil
}

// ValidateToken checks if the current token is usable without a refresh.
//
// Parameters:
//   - ts: The Claude token storage to validate
//
// Returns:
//   - bool: True if the token is valid, false otherwise
func (a *ClaudeAuth) ValidateToken(ts *ClaudeTokenStorage) bool {
	if ts == nil || ts.AccessToken == "" {
		return false
	}
	return !ts.IsExpired()
}

// doTokenRequest posts a JSON body to the OAuth token endpoint and decodes
// the issued token set. Both the code exchange and the refresh flow share it.
func (a *ClaudeAuth) doTokenRequest(ctx context.Context, requestBody map[string]interface{}) (*ClaudeTokenStorage, error) {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeTokenURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute token request: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("[Claude Auth] Failed to close response body: %v", errClose)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tokenResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		Account      struct {
			EmailAddress string `json:"email_address"`
		} `json:"account"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("invalid token response: missing access_token")
	}

	expiresIn := tokenResponse.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600 // Default to 1 hour if not specified
	}
	return &ClaudeTokenStorage{
		AccessToken:  tokenResponse.AccessToken,
		RefreshToken: tokenResponse.RefreshToken,
		Email:        tokenResponse.Account.EmailAddress,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
		Type:         "claude",
	}, nil
}
