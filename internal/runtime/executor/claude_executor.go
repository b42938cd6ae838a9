package executor

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/tidwall/sjson"

	"github.com/claudegate/claudegate/internal/config"
)

const messagesEndpoint = "/v1/messages"

// streamScanBufferSize bounds a single SSE line. Anthropic responses can
// carry whole base64 images inside one data line.
const streamScanBufferSize = 52_428_800 // 50MB

// StreamChunk is one upstream SSE line or a terminal read error.
type StreamChunk struct {
	Payload []byte
	Err     error
}

// StreamResult carries the upstream response headers and the line channel.
// The channel closes when the upstream body ends or the context is canceled.
type StreamResult struct {
	Headers http.Header
	Chunks  <-chan StreamChunk
}

// ClaudeExecutor performs requests against the Anthropic Messages API using
// the credentials and proxy settings from the configuration.
type ClaudeExecutor struct {
	cfg    *config.Config
	client *claudeClient
}

// NewClaudeExecutor creates a new Claude executor instance.
func NewClaudeExecutor(cfg *config.Config) *ClaudeExecutor {
	return &ClaudeExecutor{
		cfg:    cfg,
		client: newClaudeClient(cfg),
	}
}

// Identifier returns the executor identifier for Claude.
func (e *ClaudeExecutor) Identifier() string { return "claude" }

// Execute performs a non-streaming messages call and returns the decoded
// response body together with the upstream headers.
func (e *ClaudeExecutor) Execute(ctx context.Context, payload []byte) ([]byte, http.Header, error) {
	// The transport mode follows the method, not whatever the payload says.
	payload, _ = sjson.DeleteBytes(payload, "stream")
	resp, err := e.client.doRequest(ctx, messagesEndpoint, payload, false)
	if err != nil {
		return nil, nil, err
	}
	decodedBody, err := decodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		closeBody(resp.Body)
		return nil, nil, err
	}
	defer closeBody(decodedBody)

	data, err := io.ReadAll(decodedBody)
	if err != nil {
		return nil, nil, err
	}
	e.client.debugDumpPayload("claude response", data)
	return data, resp.Header.Clone(), nil
}

// ExecuteStream performs a streaming messages call. Each upstream line is
// forwarded as one chunk; a scanner error surfaces as the final chunk.
func (e *ClaudeExecutor) ExecuteStream(ctx context.Context, payload []byte) (*StreamResult, error) {
	payload, _ = sjson.SetBytes(payload, "stream", true)
	resp, err := e.client.doRequest(ctx, messagesEndpoint, payload, true)
	if err != nil {
		return nil, err
	}
	decodedBody, err := decodeResponseBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		closeBody(resp.Body)
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer closeBody(decodedBody)

		scanner := bufio.NewScanner(decodedBody)
		scanner.Buffer(nil, streamScanBufferSize)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case out <- StreamChunk{Payload: line}:
			case <-ctx.Done():
				return
			}
		}
		if errScan := scanner.Err(); errScan != nil {
			select {
			case out <- StreamChunk{Err: errScan}:
			case <-ctx.Done():
			}
		}
	}()
	return &StreamResult{Headers: resp.Header.Clone(), Chunks: out}, nil
}

// CountTokens returns a local tokenizer-based estimate for a messages
// payload. It never calls upstream; the result feeds debug logging and the
// usage fallback when a response carries no usage block.
func (e *ClaudeExecutor) CountTokens(model string, payload []byte) int64 {
	return countClaudeRequestTokens(model, payload)
}
