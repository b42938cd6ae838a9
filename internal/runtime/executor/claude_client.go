// Package executor sends translated requests to the Anthropic Messages API
// and hands the (decompressed) responses back to the API layer.
package executor

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	claudeauth "github.com/claudegate/claudegate/internal/auth/claude"
	"github.com/claudegate/claudegate/internal/config"
	"github.com/claudegate/claudegate/internal/misc"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

const (
	claudeVersion   = "2023-06-01"
	claudeOAuthBeta = "oauth-2025-04-20"
	claudeUserAgent = "claude-cli/2.0.76 (external, cli)"
)

// StatusError carries the upstream HTTP status so the API layer can map
// failures onto the matching client-facing status and error shape.
type StatusError struct {
	Code    int
	Message string
}

func (e StatusError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fmt.Sprintf("status %d", e.Code)
}

// StatusCode returns the upstream HTTP status code.
func (e StatusError) StatusCode() int { return e.Code }

type claudeClient struct {
	cfg  *config.Config
	auth *claudeauth.ClaudeAuth
}

func newClaudeClient(cfg *config.Config) *claudeClient {
	proxyURL := ""
	if cfg != nil {
		proxyURL = cfg.ProxyURL
	}
	return &claudeClient{
		cfg:  cfg,
		auth: claudeauth.NewClaudeAuth(proxyURL),
	}
}

// credentials returns the API key or OAuth access token to send upstream.
// OAuth tokens are refreshed when expired and the refreshed token is written
// back to the token file.
func (c *claudeClient) credentials(ctx context.Context) (string, error) {
	if c.cfg.Claude.APIKey != "" {
		return c.cfg.Claude.APIKey, nil
	}
	path, err := c.cfg.ResolveTokenFile()
	if err != nil {
		return "", fmt.Errorf("claude client: resolve token file: %w", err)
	}
	if path == "" {
		return "", StatusError{
			Code:    http.StatusUnauthorized,
			Message: "no claude credentials configured; set claude.api-key or run with --claude-login",
		}
	}
	ts, err := claudeauth.LoadTokenFromFile(path)
	if err != nil {
		return "", fmt.Errorf("claude client: %w", err)
	}
	refreshed, err := c.auth.RefreshIfNeeded(ctx, ts)
	if err != nil {
		return "", fmt.Errorf("claude client: %w", err)
	}
	if refreshed {
		if errSave := ts.SaveTokenToFile(path); errSave != nil {
			log.Warnf("claude client: failed to persist refreshed token: %v", errSave)
		}
	}
	return ts.AccessToken, nil
}

// doRequest posts a messages payload and returns the raw response after
// status classification. The caller owns the body.
func (c *claudeClient) doRequest(ctx context.Context, endpointPath string, body []byte, stream bool) (*http.Response, error) {
	apiKey, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}

	c.debugDumpPayload("claude request", body)

	endpoint := c.cfg.Claude.BaseURL + endpointPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	applyClaudeHeaders(req, apiKey, stream)

	// Streaming responses stay open arbitrarily long, so only the JSON path
	// gets a client-side timeout.
	timeout := 120 * time.Second
	if stream {
		timeout = 0
	}
	httpClient := newProxyAwareHTTPClient(c.cfg.ProxyURL, timeout)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readStatusError(resp)
	}
	return resp, nil
}

// readStatusError drains and classifies a non-2xx response. Compressed error
// bodies are decompressed first so the message reaching the client-facing
// error mapper is readable.
func readStatusError(resp *http.Response) error {
	errBody := resp.Body
	if ce := resp.Header.Get("Content-Encoding"); ce != "" {
		decoded, err := decodeResponseBody(resp.Body, ce)
		if err != nil {
			return StatusError{
				Code:    resp.StatusCode,
				Message: fmt.Sprintf("failed to decode error response body (encoding=%s): %v", ce, err),
			}
		}
		errBody = decoded
	}
	defer closeBody(errBody)

	b, err := io.ReadAll(errBody)
	if err != nil {
		return StatusError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("failed to read error response body: %v", err),
		}
	}
	log.Debugf("claude client: upstream error, status: %d, message: %s", resp.StatusCode, string(bytes.TrimSpace(b)))
	return StatusError{Code: resp.StatusCode, Message: string(b)}
}

// applyClaudeHeaders sets the header set the Anthropic API expects. API keys
// authenticate through x-api-key; OAuth access tokens (sk-ant-oat marker) use
// a bearer Authorization header plus the oauth beta.
func applyClaudeHeaders(r *http.Request, apiKey string, stream bool) {
	r.Header.Set("Content-Type", "application/json")
	misc.EnsureHeader(r.Header, "Anthropic-Version", claudeVersion)
	if isClaudeOAuthToken(apiKey) {
		r.Header.Set("Authorization", "Bearer "+apiKey)
		r.Header.Set("Anthropic-Beta", claudeOAuthBeta)
		r.Header.Set("Anthropic-Dangerous-Direct-Browser-Access", "true")
		r.Header.Set("X-App", "cli")
		r.Header.Set("User-Agent", claudeUserAgent)
	} else {
		r.Header.Set("x-api-key", apiKey)
	}
	r.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	if stream {
		r.Header.Set("Accept", "text/event-stream")
	} else {
		r.Header.Set("Accept", "application/json")
	}
}

func isClaudeOAuthToken(apiKey string) bool {
	return strings.Contains(apiKey, "sk-ant-oat")
}

// newProxyAwareHTTPClient builds the upstream client. A zero timeout keeps
// streaming responses open indefinitely. Unusable proxy settings fall back to
// a direct client rather than failing the request.
func newProxyAwareHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if proxyURL == "" {
		return client
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		log.Warnf("claude client: invalid proxy URL %s: %v", proxyURL, err)
		return client
	}
	transport := &http.Transport{}
	switch parsed.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)
	case "socks5":
		dialer, errDial := proxy.SOCKS5("tcp", parsed.Host, nil, proxy.Direct)
		if errDial != nil {
			log.Warnf("claude client: failed to create socks5 dialer: %v", errDial)
			return client
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return client
		}
		transport.DialContext = contextDialer.DialContext
	default:
		log.Warnf("claude client: unsupported proxy scheme %q", parsed.Scheme)
		return client
	}
	client.Transport = transport
	return client
}

type compositeReadCloser struct {
	io.Reader
	closers []func() error
}

func (c *compositeReadCloser) Close() error {
	var firstErr error
	for _, closeFn := range c.closers {
		if closeFn == nil {
			continue
		}
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// decodeResponseBody wraps the body in the decompressor matching its
// Content-Encoding. Unknown or identity encodings pass through unchanged.
func decodeResponseBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	if body == nil {
		return nil, fmt.Errorf("response body is nil")
	}
	if contentEncoding == "" {
		return body, nil
	}
	for _, raw := range strings.Split(contentEncoding, ",") {
		switch strings.TrimSpace(strings.ToLower(raw)) {
		case "", "identity":
			continue
		case "gzip":
			gzipReader, err := gzip.NewReader(body)
			if err != nil {
				_ = body.Close()
				return nil, fmt.Errorf("failed to create gzip reader: %w", err)
			}
			return &compositeReadCloser{
				Reader:  gzipReader,
				closers: []func() error{gzipReader.Close, body.Close},
			}, nil
		case "deflate":
			deflateReader := flate.NewReader(body)
			return &compositeReadCloser{
				Reader:  deflateReader,
				closers: []func() error{deflateReader.Close, body.Close},
			}, nil
		case "br":
			return &compositeReadCloser{
				Reader:  brotli.NewReader(body),
				closers: []func() error{body.Close},
			}, nil
		case "zstd":
			decoder, err := zstd.NewReader(body)
			if err != nil {
				_ = body.Close()
				return nil, fmt.Errorf("failed to create zstd reader: %w", err)
			}
			return &compositeReadCloser{
				Reader: decoder,
				closers: []func() error{
					func() error { decoder.Close(); return nil },
					body.Close,
				},
			}, nil
		default:
			continue
		}
	}
	return body, nil
}

func closeBody(body io.Closer) {
	if body == nil {
		return
	}
	if err := body.Close(); err != nil {
		log.Errorf("claude client: close body error: %v", err)
	}
}

func (c *claudeClient) debugDumpPayload(label string, payload []byte) {
	if c.cfg == nil || !c.cfg.Debug || len(payload) == 0 {
		return
	}
	const limit = 4096
	dump := bytes.TrimSpace(payload)
	truncated := false
	if len(dump) > limit {
		dump = dump[:limit]
		truncated = true
	}
	render := sanitizePayloadForLog(dump)
	if render == "" {
		render = "[binary payload omitted]"
	}
	log.WithFields(log.Fields{
		"provider":  "claude",
		"bytes":     len(payload),
		"truncated": truncated,
	}).Debugf("%s payload: %s", label, render)
}

// sanitizePayloadForLog normalizes line endings and strips non-printable
// bytes so payload dumps stay readable in the log stream.
func sanitizePayloadForLog(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	normalized := bytes.ReplaceAll(payload, []byte("\r\n"), []byte("\n"))
	normalized = bytes.ReplaceAll(normalized, []byte{'\r'}, []byte{'\n'})
	out := make([]byte, 0, len(normalized))
	for _, b := range normalized {
		switch {
		case b == '\n' || b == '\t':
			out = append(out, b)
		case b < 0x20 || b == 0x7f:
			continue
		case b >= 0x80 && b < 0xa0:
			continue
		default:
			out = append(out, b)
		}
	}
	return string(bytes.TrimSpace(out))
}
