package executor

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

func TestSanitizePayloadForLogRemovesControl(t *testing.T) {
	raw := []byte("event: message_start\r\ndata: {\"type\":\"message_start\"}\x1e\r\nevent: content_block_delta\x90\r\n")
	got := sanitizePayloadForLog(raw)
	expected := "event: message_start\ndata: {\"type\":\"message_start\"}\nevent: content_block_delta"
	if got != expected {
		t.Fatalf("expected %q, got %q", expected, got)
	}
}

func TestSanitizePayloadForLogPreservesPrintable(t *testing.T) {
	raw := []byte("Tool output says 30°C\nand rising.")
	got := sanitizePayloadForLog(raw)
	expected := "Tool output says 30°C\nand rising."
	if got != expected {
		t.Fatalf("expected printable text to remain, want %q got %q", expected, got)
	}
}

func TestDecodeResponseBodyIdentity(t *testing.T) {
	body := io.NopCloser(bytes.NewReader([]byte("plain")))
	decoded, err := decodeResponseBody(body, "")
	if err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	got, _ := io.ReadAll(decoded)
	if string(got) != "plain" {
		t.Fatalf("expected passthrough body, got %q", got)
	}
}

func TestDecodeResponseBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(`{"type":"message"}`)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	decoded, err := decodeResponseBody(io.NopCloser(bytes.NewReader(buf.Bytes())), "gzip")
	if err != nil {
		t.Fatalf("decode gzip: %v", err)
	}
	defer decoded.Close()
	got, err := io.ReadAll(decoded)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if string(got) != `{"type":"message"}` {
		t.Fatalf("unexpected gzip payload: %q", got)
	}
}

func TestDecodeResponseBodyDeflate(t *testing.T) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate writer: %v", err)
	}
	if _, err = fw.Write([]byte("deflated body")); err != nil {
		t.Fatalf("flate write: %v", err)
	}
	if err = fw.Close(); err != nil {
		t.Fatalf("flate close: %v", err)
	}

	decoded, err := decodeResponseBody(io.NopCloser(bytes.NewReader(buf.Bytes())), "deflate")
	if err != nil {
		t.Fatalf("decode deflate: %v", err)
	}
	defer decoded.Close()
	got, _ := io.ReadAll(decoded)
	if string(got) != "deflated body" {
		t.Fatalf("unexpected deflate payload: %q", got)
	}
}

func TestDecodeResponseBodyBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := bw.Write([]byte("brotli body")); err != nil {
		t.Fatalf("brotli write: %v", err)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("brotli close: %v", err)
	}

	decoded, err := decodeResponseBody(io.NopCloser(bytes.NewReader(buf.Bytes())), "br")
	if err != nil {
		t.Fatalf("decode brotli: %v", err)
	}
	defer decoded.Close()
	got, _ := io.ReadAll(decoded)
	if string(got) != "brotli body" {
		t.Fatalf("unexpected brotli payload: %q", got)
	}
}

func TestDecodeResponseBodyZstd(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	if _, err = zw.Write([]byte("zstd body")); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err = zw.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}

	decoded, err := decodeResponseBody(io.NopCloser(bytes.NewReader(buf.Bytes())), "zstd")
	if err != nil {
		t.Fatalf("decode zstd: %v", err)
	}
	defer decoded.Close()
	got, _ := io.ReadAll(decoded)
	if string(got) != "zstd body" {
		t.Fatalf("unexpected zstd payload: %q", got)
	}
}

func TestApplyClaudeHeadersAPIKey(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	applyClaudeHeaders(req, "sk-ant-api03-secret", false)

	if got := req.Header.Get("x-api-key"); got != "sk-ant-api03-secret" {
		t.Fatalf("expected x-api-key header, got %q", got)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("api key auth must not set Authorization, got %q", got)
	}
	if got := req.Header.Get("Anthropic-Version"); got != claudeVersion {
		t.Fatalf("expected anthropic version %q, got %q", claudeVersion, got)
	}
	if got := req.Header.Get("Accept"); got != "application/json" {
		t.Fatalf("expected json accept header, got %q", got)
	}
	if got := req.Header.Get("Accept-Encoding"); got != "gzip, deflate, br, zstd" {
		t.Fatalf("unexpected accept-encoding %q", got)
	}
}

func TestApplyClaudeHeadersOAuth(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	applyClaudeHeaders(req, "sk-ant-oat01-token", true)

	if got := req.Header.Get("Authorization"); got != "Bearer sk-ant-oat01-token" {
		t.Fatalf("expected bearer auth, got %q", got)
	}
	if got := req.Header.Get("x-api-key"); got != "" {
		t.Fatalf("oauth auth must not set x-api-key, got %q", got)
	}
	if got := req.Header.Get("Anthropic-Beta"); got != claudeOAuthBeta {
		t.Fatalf("expected oauth beta header %q, got %q", claudeOAuthBeta, got)
	}
	if got := req.Header.Get("X-App"); got != "cli" {
		t.Fatalf("expected X-App cli, got %q", got)
	}
	if got := req.Header.Get("User-Agent"); got != claudeUserAgent {
		t.Fatalf("expected user agent %q, got %q", claudeUserAgent, got)
	}
	if got := req.Header.Get("Accept"); got != "text/event-stream" {
		t.Fatalf("expected sse accept header, got %q", got)
	}
}

func TestApplyClaudeHeadersKeepsCallerVersion(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	req.Header.Set("Anthropic-Version", "2024-01-01")
	applyClaudeHeaders(req, "sk-ant-api03-secret", false)

	if got := req.Header.Get("Anthropic-Version"); got != "2024-01-01" {
		t.Fatalf("expected preset version to survive, got %q", got)
	}
}

func TestIsClaudeOAuthToken(t *testing.T) {
	if !isClaudeOAuthToken("sk-ant-oat01-abc") {
		t.Fatal("expected oauth token to be detected")
	}
	if isClaudeOAuthToken("sk-ant-api03-abc") {
		t.Fatal("api key must not be detected as oauth token")
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := StatusError{Code: 429, Message: `{"type":"error"}`}
	if err.Error() != `{"type":"error"}` {
		t.Fatalf("expected raw message, got %q", err.Error())
	}
	if err.StatusCode() != 429 {
		t.Fatalf("expected status 429, got %d", err.StatusCode())
	}

	empty := StatusError{Code: 503}
	if empty.Error() != "status 503" {
		t.Fatalf("expected fallback message, got %q", empty.Error())
	}
}

func TestNewProxyAwareHTTPClient(t *testing.T) {
	if c := newProxyAwareHTTPClient("", 0); c.Transport != nil {
		t.Fatal("expected default transport without proxy")
	}
	if c := newProxyAwareHTTPClient("http://127.0.0.1:8080", 0); c.Transport == nil {
		t.Fatal("expected transport for http proxy")
	}
	if c := newProxyAwareHTTPClient("socks5://127.0.0.1:1080", 0); c.Transport == nil {
		t.Fatal("expected transport for socks5 proxy")
	}
	if c := newProxyAwareHTTPClient("ftp://127.0.0.1:21", 0); c.Transport != nil {
		t.Fatal("expected fallback to direct client for unsupported scheme")
	}
}
