// Package handlers implements the client-facing HTTP endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/claudegate/claudegate/internal/claude"
	"github.com/claudegate/claudegate/internal/config"
	"github.com/claudegate/claudegate/internal/logging"
	"github.com/claudegate/claudegate/internal/runtime/executor"
	"github.com/claudegate/claudegate/internal/usage"
)

// Executor sends translated payloads upstream. Satisfied by
// executor.ClaudeExecutor; tests substitute doubles.
type Executor interface {
	Identifier() string
	Execute(ctx context.Context, payload []byte) ([]byte, http.Header, error)
	ExecuteStream(ctx context.Context, payload []byte) (*executor.StreamResult, error)
	CountTokens(model string, payload []byte) int64
}

// Backend supplies the live configuration and upstream executor. The server
// swaps both when the config file reloads, so handlers fetch them per request
// instead of holding copies.
type Backend interface {
	Config() *config.Config
	Executor() Executor
}

// Handler carries the shared dependencies of all endpoints.
type Handler struct {
	backend     Backend
	tracker     *usage.Tracker
	broadcaster *logging.Broadcaster
}

// New creates the endpoint handler set.
func New(backend Backend, tracker *usage.Tracker, broadcaster *logging.Broadcaster) *Handler {
	return &Handler{backend: backend, tracker: tracker, broadcaster: broadcaster}
}

// ErrorResponse is the client-facing error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error body fields clients switch on.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func errorTypeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "authentication_error"
	case status == http.StatusForbidden:
		return "permission_error"
	case status == http.StatusNotFound:
		return "not_found_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status >= 500:
		return "api_error"
	default:
		return "invalid_request_error"
	}
}

// writeUpstreamError maps an executor failure onto the client error shape.
// StatusError keeps its upstream status; anything else surfaces as a 502.
// Oversized-prompt rejections additionally get the canonical overflow code.
func writeUpstreamError(c *gin.Context, err error) {
	var statusErr executor.StatusError
	if !errors.As(err, &statusErr) {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: ErrorDetail{
			Message: err.Error(),
			Type:    "api_error",
		}})
		return
	}

	status := statusErr.StatusCode()
	message := statusErr.Error()
	errType := errorTypeForStatus(status)
	if parsed := gjson.Get(message, "error.message"); parsed.Exists() {
		if t := gjson.Get(message, "error.type").String(); t != "" {
			errType = t
		}
		message = parsed.String()
	}

	code := ""
	if status == http.StatusBadRequest {
		if actual, limit, ok := claude.ParseTokenLimitError(message); ok {
			code = "context_length_exceeded"
			log.Warnf("chat: upstream rejected prompt size: %d tokens > %d maximum", actual, limit)
		}
	}

	c.JSON(status, ErrorResponse{Error: ErrorDetail{Message: message, Type: errType, Code: code}})
}

func writeInvalidRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{
		Message: message,
		Type:    "invalid_request_error",
	}})
}
