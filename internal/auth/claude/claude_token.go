// Package claude provides authentication and token management functionality
// for the Anthropic API. It handles OAuth token storage, serialization,
// and retrieval for maintaining authenticated sessions with Claude.
package claude

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claudegate/claudegate/internal/misc"
	log "github.com/sirupsen/logrus"
)

// ClaudeTokenStorage stores OAuth token information for Claude API authentication.
// It holds the access and refresh tokens together with the account identity
// reported by the OAuth token endpoint.
type ClaudeTokenStorage struct {
	// AccessToken is the OAuth access token for API requests.
	AccessToken string `json:"accessToken"`

	// RefreshToken is used to obtain new access tokens when they expire.
	RefreshToken string `json:"refreshToken"`

	// Email is the account email reported during the token exchange.
	Email string `json:"email"`

	// ExpiresAt indicates when the access token expires.
	ExpiresAt time.Time `json:"expiresAt"`

	// Type indicates the authentication provider type, always "claude" for this storage.
	Type string `json:"type"`
}

// SaveTokenToFile serializes the Claude token storage to a JSON file.
// This method creates the necessary directory structure and writes the token
// data in JSON format to the specified file path for persistent storage.
//
// Parameters:
//   - authFilePath: The full path where the token file should be saved
//
// Returns:
//   - error: An error if the operation fails, nil otherwise
func (ts *ClaudeTokenStorage) SaveTokenToFile(authFilePath string) error {
	misc.LogSavingCredentials(authFilePath)
	ts.Type = "claude"
	if err := os.MkdirAll(filepath.Dir(authFilePath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}

	f, err := os.Create(authFilePath)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() {
		if errClose := f.Close(); errClose != nil {
			log.Errorf("failed to close file: %v", errClose)
		}
	}()

	if err = json.NewEncoder(f).Encode(ts); err != nil {
		return fmt.Errorf("failed to write token to file: %w", err)
	}
	return nil
}

// LoadTokenFromFile loads Claude token storage from a JSON file.
// This method reads and deserializes the token data from the specified file
// path. The expiresAt field accepts both the RFC 3339 string this package
// writes and the millisecond epoch number Claude Code stores in its own
// credentials file, so tokens exported from there can be used directly.
//
// Parameters:
//   - authFilePath: The full path to the token file to load
//
// Returns:
//   - *ClaudeTokenStorage: The loaded token storage
//   - error: An error if the operation fails, nil otherwise
func LoadTokenFromFile(authFilePath string) (*ClaudeTokenStorage, error) {
	f, err := os.Open(authFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer func() {
		if errClose := f.Close(); errClose != nil {
			log.Errorf("failed to close file: %v", errClose)
		}
	}()

	var raw struct {
		AccessToken  string          `json:"accessToken"`
		RefreshToken string          `json:"refreshToken"`
		Email        string          `json:"email"`
		ExpiresAt    json.RawMessage `json:"expiresAt"`
		Type         string          `json:"type"`
	}
	if err = json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}

	token := ClaudeTokenStorage{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		Email:        raw.Email,
		ExpiresAt:    parseExpiry(raw.ExpiresAt),
		Type:         "claude",
	}
	return &token, nil
}

// parseExpiry decodes the expiresAt value from either an RFC 3339 string or
// a millisecond epoch number. Unparseable values yield the zero time, which
// IsExpired treats as already expired.
func parseExpiry(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, errParse := time.Parse(time.RFC3339, s); errParse == nil {
			return parsed
		}
		return time.Time{}
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// IsExpired checks if the access token has expired.
// Returns true if the token is expired or will expire within 5 minutes.
func (ts *ClaudeTokenStorage) IsExpired() bool {
	// Consider token expired if it expires within 5 minutes to provide buffer
	return time.Until(ts.ExpiresAt) < 5*time.Minute
}
