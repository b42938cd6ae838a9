package openai

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/claudegate/claudegate/internal/translator/claude/helpers"
	"github.com/claudegate/claudegate/internal/util/toolid"
)

// StreamMetrics accumulates accounting data across one streamed response.
type StreamMetrics struct {
	Model               string
	StopReason          string
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	ClientMessageID     string
	UpstreamMessageID   string
}

func (m *StreamMetrics) hasUsage() bool {
	return m.InputTokens > 0 || m.OutputTokens > 0 || m.CacheCreationTokens > 0 || m.CacheReadTokens > 0
}

// ConvertClaudeResponseToOpenAIParams carries all per-connection state for
// one streaming conversion. Create one per request and never share it across
// connections.
type ConvertClaudeResponseToOpenAIParams struct {
	Metrics  StreamMetrics
	Thinking ThinkingRenderer
	Tools    *ToolCallAssembler
	Created  int64
	DoneSent bool
}

// NewConvertClaudeResponseToOpenAIParams seeds fresh per-connection state.
// model is the caller-requested name, used until the upstream announces its
// own in message_start.
func NewConvertClaudeResponseToOpenAIParams(model string) *ConvertClaudeResponseToOpenAIParams {
	return &ConvertClaudeResponseToOpenAIParams{
		Metrics: StreamMetrics{Model: model, ClientMessageID: helpers.NewChatCompletionID()},
		Tools:   NewToolCallAssembler(),
		Created: time.Now().Unix(),
	}
}

// ConvertClaudeResponseToOpenAI consumes one framed upstream line and
// returns zero or more client-ready SSE frames. Frames it cannot parse are
// skipped without aborting the stream.
func ConvertClaudeResponseToOpenAI(rawLine []byte, p *ConvertClaudeResponseToOpenAIParams) [][]byte {
	payload := extractEventPayload(rawLine)
	if payload == "" {
		return nil
	}
	root := gjson.Parse(payload)

	switch root.Get("type").String() {
	case "ping":
		return [][]byte{helpers.BuildKeepAlive()}

	case "message_start":
		message := root.Get("message")
		p.Metrics.UpstreamMessageID = message.Get("id").String()
		if model := message.Get("model").String(); model != "" {
			p.Metrics.Model = model
		}
		mergeUsage(&p.Metrics, message.Get("usage"))
		return p.frame(helpers.BuildRoleChunk(p.Metrics.ClientMessageID, p.Metrics.Model, p.Created))

	case "content_block_start":
		block := root.Get("content_block")
		// Text and thinking blocks only produce output via their deltas.
		if block.Get("type").String() != "tool_use" {
			return nil
		}
		blockIndex := int(root.Get("index").Int())
		callID := toolid.Encode(helpers.SanitizeToolCallID(block.Get("id").String()))
		tracker := p.Tools.Register(blockIndex, callID, block.Get("name").String())
		return p.frame(helpers.BuildToolCallStartChunk(p.Metrics.ClientMessageID, p.Metrics.Model, p.Created, tracker.OpenAIIndex, callID, tracker.Name))

	case "content_block_delta":
		return p.convertDelta(root)

	case "content_block_stop":
		if out := p.Thinking.CloseSegment(); out != "" {
			return p.frame(helpers.BuildContentChunk(p.Metrics.ClientMessageID, p.Metrics.Model, p.Created, out))
		}
		return nil

	case "message_delta":
		mergeUsage(&p.Metrics, root.Get("usage"))
		stopReason := root.Get("delta.stop_reason").String()
		if stopReason == "" {
			return nil
		}
		p.Metrics.StopReason = stopReason
		return p.frame(helpers.BuildFinishChunk(p.Metrics.ClientMessageID, p.Metrics.Model, p.Created, helpers.MapStopReason(stopReason)))

	case "message_stop":
		return finalizeStream(p)
	}
	return nil
}

// FinalizeClaudeResponseToOpenAI flushes whatever the stream still owes when
// the upstream ends without a message_stop: close-of-thinking markup, the
// usage chunk when any counts accumulated, and the terminator. Idempotent.
func FinalizeClaudeResponseToOpenAI(p *ConvertClaudeResponseToOpenAIParams) [][]byte {
	return finalizeStream(p)
}

func (p *ConvertClaudeResponseToOpenAIParams) convertDelta(root gjson.Result) [][]byte {
	delta := root.Get("delta")
	switch {
	case delta.Get("partial_json").Exists():
		blockIndex := int(root.Get("index").Int())
		argsDelta, ok := p.Tools.AppendFragment(blockIndex, delta.Get("partial_json").String())
		if !ok {
			log.Debugf("claude stream: dropping argument delta for unregistered block %d", blockIndex)
			return nil
		}
		if argsDelta == "" {
			return nil
		}
		tracker := p.Tools.Tracker(blockIndex)
		return p.frame(helpers.BuildToolCallArgsChunk(p.Metrics.ClientMessageID, p.Metrics.Model, p.Created, tracker.OpenAIIndex, argsDelta))

	case delta.Get("thinking").Exists():
		out := p.Thinking.RenderFragment(delta.Get("thinking").String())
		if out == "" {
			return nil
		}
		return p.frame(helpers.BuildContentChunk(p.Metrics.ClientMessageID, p.Metrics.Model, p.Created, out))

	case delta.Get("text").Exists():
		text := delta.Get("text").String()
		if text == "" {
			return nil
		}
		return p.frame(helpers.BuildContentChunk(p.Metrics.ClientMessageID, p.Metrics.Model, p.Created, p.Thinking.AnswerPrefix()+text))
	}
	// signature_delta and future delta kinds carry nothing for the client.
	return nil
}

func (p *ConvertClaudeResponseToOpenAIParams) frame(payload map[string]any) [][]byte {
	return [][]byte{helpers.BuildSSEData(payload)}
}

func finalizeStream(p *ConvertClaudeResponseToOpenAIParams) [][]byte {
	if p.DoneSent {
		return nil
	}
	p.DoneSent = true
	var frames [][]byte
	if out := p.Thinking.CloseSegment(); out != "" {
		frames = append(frames, helpers.BuildSSEData(helpers.BuildContentChunk(p.Metrics.ClientMessageID, p.Metrics.Model, p.Created, out)))
	}
	if m := &p.Metrics; m.hasUsage() {
		frames = append(frames, helpers.BuildSSEData(helpers.BuildUsageChunk(m.ClientMessageID, m.Model, p.Created, m.InputTokens, m.OutputTokens, m.CacheCreationTokens, m.CacheReadTokens)))
	}
	return append(frames, helpers.BuildDone())
}

// extractEventPayload unwraps one upstream SSE line down to its JSON object.
// Event-name lines, comments, and blanks carry nothing; the event type lives
// inside the data payload anyway.
func extractEventPayload(rawLine []byte) string {
	line := strings.TrimSpace(string(rawLine))
	if line == "" || strings.HasPrefix(line, "event:") || strings.HasPrefix(line, ":") {
		return ""
	}
	if after, found := strings.CutPrefix(line, "data:"); found {
		line = strings.TrimSpace(after)
	}
	if !strings.HasPrefix(line, "{") {
		return ""
	}
	if !gjson.Valid(line) {
		log.Debugf("claude stream: skipping malformed event frame: %.120s", line)
		return ""
	}
	return line
}

func mergeUsage(m *StreamMetrics, usage gjson.Result) {
	if !usage.Exists() {
		return
	}
	if v := usage.Get("input_tokens"); v.Exists() {
		m.InputTokens = v.Int()
	}
	if v := usage.Get("output_tokens"); v.Exists() {
		m.OutputTokens = v.Int()
	}
	if v := usage.Get("cache_creation_input_tokens"); v.Exists() {
		m.CacheCreationTokens = v.Int()
	}
	if v := usage.Get("cache_read_input_tokens"); v.Exists() {
		m.CacheReadTokens = v.Int()
	}
}
