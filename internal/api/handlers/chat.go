package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/claudegate/claudegate/internal/claude"
	openaitranslator "github.com/claudegate/claudegate/internal/translator/claude/openai"
	"github.com/claudegate/claudegate/internal/usage"
)

// ChatCompletions serves POST /v1/chat/completions: translate the OpenAI
// request, trim the transcript to budget, call upstream, and convert the
// response back in whichever mode the client asked for.
func (h *Handler) ChatCompletions(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		writeInvalidRequest(c, "failed to read request body: "+err.Error())
		return
	}

	req, err := openaitranslator.ConvertOpenAIRequestToClaude(raw)
	if err != nil {
		writeInvalidRequest(c, err.Error())
		return
	}

	cfg := h.backend.Config()
	truncated := false
	if !cfg.Truncation.Disabled {
		truncator := claude.NewTruncator()
		if cfg.Truncation.MinMessagesToKeep > 0 {
			truncator.MinMessagesToKeep = cfg.Truncation.MinMessagesToKeep
		}
		before := len(req.Messages)
		truncated = truncator.Truncate(req, cfg.Truncation.TokenLimit)
		if truncated {
			log.Infof("chat: transcript truncated from %d to %d messages to fit %d tokens", before, len(req.Messages), cfg.Truncation.TokenLimit)
		}
	}
	for _, issue := range claude.ValidateTranscript(req.Messages) {
		log.Warnf("chat: transcript check: %s", issue)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
			Message: "failed to encode upstream request: " + err.Error(),
			Type:    "api_error",
		}})
		return
	}

	exec := h.backend.Executor()
	if cfg.Debug {
		log.Debugf("chat: model %s, local estimate %d tokens", req.Model, exec.CountTokens(req.Model, payload))
	}

	if req.Stream {
		h.streamCompletion(c, exec, req, payload, truncated)
		return
	}
	h.completeOnce(c, exec, req, payload, truncated)
}

func (h *Handler) completeOnce(c *gin.Context, exec Executor, req *claude.Request, payload []byte, truncated bool) {
	data, _, err := exec.Execute(c.Request.Context(), payload)
	if err != nil {
		h.tracker.Record(usage.Record{Model: req.Model, Truncated: truncated, Failed: true})
		writeUpstreamError(c, err)
		return
	}

	out, err := openaitranslator.ConvertClaudeResponseToOpenAINonStream(data)
	if err != nil {
		h.tracker.Record(usage.Record{Model: req.Model, Truncated: truncated, Failed: true})
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: ErrorDetail{
			Message: err.Error(),
			Type:    "api_error",
		}})
		return
	}

	rec := usage.Record{
		Model:               gjson.GetBytes(data, "model").String(),
		InputTokens:         gjson.GetBytes(data, "usage.input_tokens").Int(),
		OutputTokens:        gjson.GetBytes(data, "usage.output_tokens").Int(),
		CacheReadTokens:     gjson.GetBytes(data, "usage.cache_read_input_tokens").Int(),
		CacheCreationTokens: gjson.GetBytes(data, "usage.cache_creation_input_tokens").Int(),
		Truncated:           truncated,
	}
	if rec.Model == "" {
		rec.Model = req.Model
	}
	if rec.InputTokens == 0 && rec.OutputTokens == 0 {
		// Upstream omitted usage; fall back to the local estimate.
		rec.InputTokens = exec.CountTokens(rec.Model, payload)
	}
	h.tracker.Record(rec)

	c.Data(http.StatusOK, "application/json", out)
}

func (h *Handler) streamCompletion(c *gin.Context, exec Executor, req *claude.Request, payload []byte, truncated bool) {
	result, err := exec.ExecuteStream(c.Request.Context(), payload)
	if err != nil {
		h.tracker.Record(usage.Record{Model: req.Model, Truncated: truncated, Failed: true})
		writeUpstreamError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.tracker.Record(usage.Record{Model: req.Model, Truncated: truncated, Failed: true})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{
			Message: "streaming not supported by this connection",
			Type:    "api_error",
		}})
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	params := openaitranslator.NewConvertClaudeResponseToOpenAIParams(req.Model)
	failed := false
	defer func() {
		m := &params.Metrics
		rec := usage.Record{
			Model:               m.Model,
			InputTokens:         m.InputTokens,
			OutputTokens:        m.OutputTokens,
			CacheReadTokens:     m.CacheReadTokens,
			CacheCreationTokens: m.CacheCreationTokens,
			Truncated:           truncated,
			Failed:              failed,
		}
		if rec.InputTokens == 0 && rec.OutputTokens == 0 {
			rec.InputTokens = exec.CountTokens(rec.Model, payload)
		}
		h.tracker.Record(rec)
	}()

	for chunk := range result.Chunks {
		if chunk.Err != nil {
			log.Errorf("chat: upstream stream error: %v", chunk.Err)
			failed = true
			break
		}
		for _, frame := range openaitranslator.ConvertClaudeResponseToOpenAI(chunk.Payload, params) {
			if _, errWrite := c.Writer.Write(frame); errWrite != nil {
				log.Debugf("chat: client write failed, aborting stream: %v", errWrite)
				return
			}
			flusher.Flush()
		}
	}

	// Flush whatever the stream still owes, [DONE] included, even when the
	// upstream ended without message_stop.
	for _, frame := range openaitranslator.FinalizeClaudeResponseToOpenAI(params) {
		if _, errWrite := c.Writer.Write(frame); errWrite != nil {
			log.Debugf("chat: client write failed during finalize: %v", errWrite)
			return
		}
		flusher.Flush()
	}
}
