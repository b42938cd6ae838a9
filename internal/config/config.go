// Package config loads and validates the YAML configuration that drives the
// proxy: listen address, client API keys, upstream Claude credentials, and
// transcript truncation settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	claudeauth "github.com/claudegate/claudegate/internal/auth/claude"
	"github.com/claudegate/claudegate/internal/claude"
	"gopkg.in/yaml.v3"
)

const defaultPort = 8317

// Config is the root configuration document.
type Config struct {
	// Host is the listen address. Empty binds all interfaces.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the listen port for the OpenAI-compatible API.
	Port int `yaml:"port" json:"port"`

	// AuthDir is the directory holding Claude credential files.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// APIKeys lists the keys clients may present. Empty means open access.
	APIKeys []string `yaml:"api-keys,omitempty" json:"api-keys,omitempty"`

	// ManagementKey guards the /v0/management endpoints. Empty disables them.
	ManagementKey string `yaml:"management-key,omitempty" json:"management-key,omitempty"`

	// Debug switches verbose logging and gin debug mode.
	Debug bool `yaml:"debug,omitempty" json:"debug,omitempty"`

	// LoggingToFile mirrors log output into rotated files under LogDir.
	LoggingToFile bool `yaml:"logging-to-file,omitempty" json:"logging-to-file,omitempty"`

	// LogDir is the directory for rotated log files.
	LogDir string `yaml:"log-dir,omitempty" json:"log-dir,omitempty"`

	// ProxyURL routes upstream traffic through an http, https or socks5 proxy.
	ProxyURL string `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`

	// AllowOrigins restricts CORS. Empty allows any origin.
	AllowOrigins []string `yaml:"allow-origins,omitempty" json:"allow-origins,omitempty"`

	// RequestLog enables per-request access logging.
	RequestLog bool `yaml:"request-log,omitempty" json:"request-log,omitempty"`

	// Claude configures the upstream Anthropic credentials and endpoint.
	Claude ClaudeConfig `yaml:"claude,omitempty" json:"claude,omitempty"`

	// Truncation configures the transcript truncation pass.
	Truncation TruncationConfig `yaml:"truncation,omitempty" json:"truncation,omitempty"`
}

// ClaudeConfig selects how the proxy authenticates against the Anthropic API.
// An API key wins over a token file; with neither set, the auth directory is
// scanned for credential files created by the login flow.
type ClaudeConfig struct {
	APIKey    string `yaml:"api-key,omitempty" json:"api-key,omitempty"`
	BaseURL   string `yaml:"base-url,omitempty" json:"base-url,omitempty"`
	TokenFile string `yaml:"token-file,omitempty" json:"token-file,omitempty"`
}

// TruncationConfig tunes the token-budget transcript truncation.
type TruncationConfig struct {
	// Disabled turns the truncation pass off entirely.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	// TokenLimit is the estimated-token budget a request must fit into.
	TokenLimit int `yaml:"token-limit,omitempty" json:"token-limit,omitempty"`

	// MinMessagesToKeep bounds how far tool-pair removal may reach into the
	// tail of the transcript.
	MinMessagesToKeep int `yaml:"min-messages-to-keep,omitempty" json:"min-messages-to-keep,omitempty"`
}

// LoadConfig reads, normalizes and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Normalize()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and trims the string fields. It is idempotent.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	c.AuthDir = strings.TrimSpace(c.AuthDir)
	if c.AuthDir == "" {
		c.AuthDir = "~/.claudegate"
	}
	if expanded, err := expandUserPath(c.AuthDir); err == nil && expanded != "" {
		c.AuthDir = expanded
	}
	c.LogDir = strings.TrimSpace(c.LogDir)
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	c.ManagementKey = strings.TrimSpace(c.ManagementKey)
	c.ProxyURL = strings.TrimSpace(c.ProxyURL)

	c.APIKeys = dedupeNonEmpty(c.APIKeys)
	c.AllowOrigins = dedupeNonEmpty(c.AllowOrigins)

	c.Claude.APIKey = strings.TrimSpace(c.Claude.APIKey)
	if c.Claude.APIKey == "" {
		// Environment fallback so the key can stay out of the config file.
		c.Claude.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
	c.Claude.TokenFile = strings.TrimSpace(c.Claude.TokenFile)
	c.Claude.BaseURL = strings.TrimRight(strings.TrimSpace(c.Claude.BaseURL), "/")
	if c.Claude.BaseURL == "" {
		c.Claude.BaseURL = "https://api.anthropic.com"
	}

	if c.Truncation.TokenLimit <= 0 {
		c.Truncation.TokenLimit = claude.DefaultTokenLimit
	}
	if c.Truncation.MinMessagesToKeep <= 0 {
		c.Truncation.MinMessagesToKeep = claude.DefaultMinMessagesToKeep
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if c.ProxyURL != "" {
		parsed, err := url.Parse(c.ProxyURL)
		if err != nil {
			return fmt.Errorf("invalid proxy-url: %w", err)
		}
		switch parsed.Scheme {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("proxy-url scheme %q is not supported", parsed.Scheme)
		}
	}
	return c.ValidateClaudeAuth()
}

// ValidateClaudeAuth checks that the configured Claude credentials are usable.
// API-key mode needs no further checks. An explicitly configured token file
// must exist and carry the fields the refresh flow needs. Nothing configured
// is allowed since the login flow can create the token file later.
func (c *Config) ValidateClaudeAuth() error {
	if c.Claude.APIKey != "" {
		return nil
	}
	if c.Claude.TokenFile == "" {
		return nil
	}
	resolvedPath, err := c.ResolveTokenFile()
	if err != nil {
		return fmt.Errorf("claude token file: %w", err)
	}
	info, err := os.Stat(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("claude token file: %s does not exist", resolvedPath)
		}
		return fmt.Errorf("claude token file: failed to stat %s: %w", resolvedPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("claude token file: %s is a directory", resolvedPath)
	}
	token, err := claudeauth.LoadTokenFromFile(resolvedPath)
	if err != nil {
		return fmt.Errorf("claude token file: %w", err)
	}
	if err = ensureClaudeRequiredFields(token); err != nil {
		return fmt.Errorf("claude token file: %w", err)
	}
	return nil
}

// ResolveTokenFile returns the absolute path of the Claude token file. An
// explicitly configured claude.token-file wins; otherwise the auth directory
// is scanned for claude*.json files and the lexically first match is used.
// An empty path with a nil error means no credentials file is discoverable.
func (c *Config) ResolveTokenFile() (string, error) {
	if path := c.Claude.TokenFile; path != "" {
		expanded, err := expandUserPath(path)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(expanded) {
			return filepath.Clean(expanded), nil
		}
		base, err := expandUserPath(c.AuthDir)
		if err != nil {
			return "", err
		}
		if base == "" {
			return "", fmt.Errorf("claude.token-file %q is relative but auth-dir is not configured", c.Claude.TokenFile)
		}
		return filepath.Clean(filepath.Join(base, expanded)), nil
	}

	base, err := expandUserPath(c.AuthDir)
	if err != nil || base == "" {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(base, "claude*.json"))
	if err != nil || len(matches) == 0 {
		return "", err
	}
	sort.Strings(matches)
	return matches[0], nil
}

func ensureClaudeRequiredFields(token *claudeauth.ClaudeTokenStorage) error {
	if token == nil {
		return fmt.Errorf("token payload is empty")
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return fmt.Errorf("accessToken is required")
	}
	if strings.TrimSpace(token.RefreshToken) == "" {
		return fmt.Errorf("refreshToken is required")
	}
	if token.ExpiresAt.IsZero() {
		return fmt.Errorf("expiresAt is required")
	}
	return nil
}

func dedupeNonEmpty(values []string) []string {
	if len(values) == 0 {
		return values
	}
	unique := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, exists := unique[v]; exists {
			continue
		}
		unique[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func expandUserPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] != '~' {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return filepath.Clean(home), nil
	}
	remainder := strings.TrimLeft(path[1:], string(filepath.Separator))
	remainder = strings.TrimLeft(remainder, "/\\")
	if remainder == "" {
		return filepath.Clean(home), nil
	}
	return filepath.Clean(filepath.Join(home, remainder)), nil
}
