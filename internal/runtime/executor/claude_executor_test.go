package executor

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claudegate/claudegate/internal/config"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Claude.APIKey = "sk-ant-api03-test"
	cfg.Claude.BaseURL = baseURL
	return cfg
}

func TestClaudeExecutorExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected /v1/messages, got %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant-api03-test" {
			t.Errorf("expected api key header, got %q", got)
		}
		if got := r.Header.Get("Anthropic-Version"); got != claudeVersion {
			t.Errorf("expected anthropic version, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"model":"claude-sonnet-4"}` {
			t.Errorf("unexpected upstream body: %s", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Request-Id", "req_123")
		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte(`{"type":"message","id":"msg_1"}`))
		_ = zw.Close()
	}))
	defer server.Close()

	exec := NewClaudeExecutor(testConfig(server.URL))
	data, headers, err := exec.Execute(context.Background(), []byte(`{"model":"claude-sonnet-4"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(data) != `{"type":"message","id":"msg_1"}` {
		t.Fatalf("expected decoded body, got %s", data)
	}
	if got := headers.Get("Request-Id"); got != "req_123" {
		t.Fatalf("expected upstream headers to pass through, got %q", got)
	}
}

func TestClaudeExecutorExecuteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens required"}}`))
	}))
	defer server.Close()

	exec := NewClaudeExecutor(testConfig(server.URL))
	_, _, err := exec.Execute(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	var statusErr StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", statusErr.StatusCode())
	}
	if got := statusErr.Error(); got == "" || got == "status 400" {
		t.Fatalf("expected upstream error body to be preserved, got %q", got)
	}
}

func TestClaudeExecutorExecuteNoCredentials(t *testing.T) {
	cfg := &config.Config{}
	cfg.AuthDir = t.TempDir()

	exec := NewClaudeExecutor(cfg)
	_, _, err := exec.Execute(context.Background(), []byte(`{}`))
	var statusErr StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", statusErr.StatusCode())
	}
}

func TestClaudeExecutorExecuteStream(t *testing.T) {
	lines := []string{
		"event: message_start",
		`data: {"type":"message_start"}`,
		"",
		"event: message_stop",
		`data: {"type":"message_stop"}`,
		"",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("expected sse accept header, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n")
			flusher.Flush()
		}
	}))
	defer server.Close()

	exec := NewClaudeExecutor(testConfig(server.URL))
	result, err := exec.ExecuteStream(context.Background(), []byte(`{"stream":true}`))
	if err != nil {
		t.Fatalf("execute stream: %v", err)
	}
	if got := result.Headers.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected sse content type, got %q", got)
	}

	var got []string
	for chunk := range result.Chunks {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		got = append(got, string(chunk.Payload))
	}
	if len(got) != len(lines) {
		t.Fatalf("expected %d lines, got %d: %v", len(lines), len(got), got)
	}
	for i, line := range lines {
		if got[i] != line {
			t.Fatalf("line %d: expected %q, got %q", i, line, got[i])
		}
	}
}

func TestClaudeExecutorStreamFlagFollowsMethod(t *testing.T) {
	bodies := make(chan []byte, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		_, _ = w.Write([]byte(`{"type":"message"}`))
	}))
	defer server.Close()

	exec := NewClaudeExecutor(testConfig(server.URL))

	if _, _, err := exec.Execute(context.Background(), []byte(`{"model":"claude-sonnet-4","stream":true}`)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := <-bodies; string(got) != `{"model":"claude-sonnet-4"}` {
		t.Fatalf("expected stream flag stripped, got %s", got)
	}

	result, err := exec.ExecuteStream(context.Background(), []byte(`{"model":"claude-sonnet-4"}`))
	if err != nil {
		t.Fatalf("execute stream: %v", err)
	}
	for range result.Chunks {
	}
	if got := <-bodies; string(got) != `{"model":"claude-sonnet-4","stream":true}` {
		t.Fatalf("expected stream flag forced, got %s", got)
	}
}

func TestClaudeExecutorExecuteStreamUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	exec := NewClaudeExecutor(testConfig(server.URL))
	_, err := exec.ExecuteStream(context.Background(), []byte(`{}`))
	var statusErr StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", statusErr.StatusCode())
	}
}

func TestClaudeExecutorIdentifier(t *testing.T) {
	exec := NewClaudeExecutor(testConfig("https://api.anthropic.com"))
	if got := exec.Identifier(); got != "claude" {
		t.Fatalf("expected claude identifier, got %q", got)
	}
}

func TestClaudeExecutorCountTokens(t *testing.T) {
	exec := NewClaudeExecutor(testConfig("https://api.anthropic.com"))

	short := []byte(`{"model":"claude-sonnet-4","max_tokens":100,"messages":[{"role":"user","content":"Hi"}]}`)
	long := []byte(`{"model":"claude-sonnet-4","max_tokens":100,"system":"You are a careful assistant.","messages":[{"role":"user","content":"Please summarize the plan for the quarterly infrastructure migration in detail."}],"tools":[{"name":"get_weather","description":"Look up current weather","input_schema":{"type":"object"}}]}`)

	shortCount := exec.CountTokens("claude-sonnet-4", short)
	longCount := exec.CountTokens("claude-sonnet-4", long)
	if shortCount <= 0 {
		t.Fatalf("expected positive count for short payload, got %d", shortCount)
	}
	if longCount <= shortCount {
		t.Fatalf("expected larger payload to count more tokens: short=%d long=%d", shortCount, longCount)
	}
}

func TestCountClaudeRequestTokensFallback(t *testing.T) {
	payload := []byte("not json")
	if got := countClaudeRequestTokens("claude-sonnet-4", payload); got != int64(len(payload)/4) {
		t.Fatalf("expected character fallback, got %d", got)
	}
}

func TestSystemTextParts(t *testing.T) {
	if parts := systemTextParts(nil); parts != nil {
		t.Fatalf("expected nil for empty system, got %v", parts)
	}
	parts := systemTextParts([]byte(`"be brief"`))
	if len(parts) != 1 || parts[0] != "be brief" {
		t.Fatalf("unexpected string system parts: %v", parts)
	}
	parts = systemTextParts([]byte(`[{"type":"text","text":"one"},{"type":"text","text":"two"}]`))
	if len(parts) != 2 || parts[0] != "one" || parts[1] != "two" {
		t.Fatalf("unexpected block system parts: %v", parts)
	}
}
