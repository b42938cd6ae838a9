package openai_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/claudegate/claudegate/internal/translator/claude/openai"
)

func feed(t *testing.T, p *openai.ConvertClaudeResponseToOpenAIParams, lines ...string) [][]byte {
	t.Helper()
	var frames [][]byte
	for _, line := range lines {
		frames = append(frames, openai.ConvertClaudeResponseToOpenAI([]byte(line), p)...)
	}
	return frames
}

func chunkJSON(t *testing.T, frame []byte) gjson.Result {
	t.Helper()
	s := string(frame)
	require.True(t, strings.HasPrefix(s, "data: "), "not a data frame: %q", s)
	require.True(t, strings.HasSuffix(s, "\n\n"))
	return gjson.Parse(strings.TrimSuffix(strings.TrimPrefix(s, "data: "), "\n\n"))
}

func TestStream_EndToEndTextOnly(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("requested-model")
	frames := feed(t, p,
		`data: {"type":"message_start","message":{"id":"msg_abc","model":"m1"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		`data: {"type":"message_stop"}`,
	)
	require.Len(t, frames, 4)

	role := chunkJSON(t, frames[0])
	assert.Equal(t, "chat.completion.chunk", role.Get("object").String())
	assert.Equal(t, "m1", role.Get("model").String())
	assert.Equal(t, "assistant", role.Get("choices.0.delta.role").String())
	assert.True(t, strings.HasPrefix(role.Get("id").String(), "chatcmpl-"))

	content := chunkJSON(t, frames[1])
	assert.Equal(t, "Hello", content.Get("choices.0.delta.content").String())
	assert.Equal(t, role.Get("id").String(), content.Get("id").String())

	finish := chunkJSON(t, frames[2])
	assert.Equal(t, "stop", finish.Get("choices.0.finish_reason").String())

	// No usage was reported, so no usage chunk precedes the terminator.
	assert.Equal(t, "data: [DONE]\n\n", string(frames[3]))
	assert.Equal(t, "msg_abc", p.Metrics.UpstreamMessageID)
}

func TestStream_ToolCallFragments(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("m")
	frames := feed(t, p,
		`data: {"type":"message_start","message":{"id":"msg_1","model":"m1"}}`,
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_9","name":"get_weather"}}`,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"a\":1"}}`,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"a\":1,\"b\":2}"}}`,
		`data: {"type":"content_block_stop","index":1}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
		`data: {"type":"message_stop"}`,
	)
	require.Len(t, frames, 6)

	start := chunkJSON(t, frames[1])
	call := start.Get("choices.0.delta.tool_calls.0")
	assert.Equal(t, int64(0), call.Get("index").Int())
	assert.Equal(t, "toolu_9", call.Get("id").String())
	assert.Equal(t, "function", call.Get("type").String())
	assert.Equal(t, "get_weather", call.Get("function.name").String())
	assert.Equal(t, "", call.Get("function.arguments").String())

	delta1 := chunkJSON(t, frames[2]).Get("choices.0.delta.tool_calls.0.function.arguments").String()
	delta2 := chunkJSON(t, frames[3]).Get("choices.0.delta.tool_calls.0.function.arguments").String()
	assert.Equal(t, `{"a":1`, delta1)
	assert.Equal(t, `,"b":2}`, delta2)
	assert.Equal(t, `{"a":1,"b":2}`, p.Tools.Tracker(1).Accumulated)

	finish := chunkJSON(t, frames[4])
	assert.Equal(t, "tool_calls", finish.Get("choices.0.finish_reason").String())
	assert.Equal(t, "data: [DONE]\n\n", string(frames[5]))
}

func TestStream_ThinkingThenAnswer(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("m")
	frames := feed(t, p,
		`data: {"type":"message_start","message":{"id":"msg_2","model":"m1"}}`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"thinking"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Let me check\nthe docs"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Answer"}}`,
		`data: {"type":"message_stop"}`,
	)
	require.Len(t, frames, 5)

	thinking := chunkJSON(t, frames[1]).Get("choices.0.delta.content").String()
	assert.Equal(t, "💭 **Thinking...**\n\n- *Let me check*\n\n- *the docs", thinking)

	closing := chunkJSON(t, frames[2]).Get("choices.0.delta.content").String()
	assert.Equal(t, "*", closing)

	answer := chunkJSON(t, frames[3]).Get("choices.0.delta.content").String()
	assert.Equal(t, "\n\n---\n\nAnswer", answer)

	full := thinking + closing
	assert.Equal(t, 0, strings.Count(full, "*")%2)
}

func TestStream_UsageChunk(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("m")
	frames := feed(t, p,
		`data: {"type":"message_start","message":{"id":"msg_3","model":"m1","usage":{"input_tokens":100,"cache_creation_input_tokens":10,"cache_read_input_tokens":20}}}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":50}}`,
		`data: {"type":"message_stop"}`,
	)
	require.Len(t, frames, 4)

	usage := chunkJSON(t, frames[2]).Get("usage")
	assert.Equal(t, int64(130), usage.Get("prompt_tokens").Int())
	assert.Equal(t, int64(50), usage.Get("completion_tokens").Int())
	assert.Equal(t, int64(180), usage.Get("total_tokens").Int())
	assert.Equal(t, int64(20), usage.Get("prompt_tokens_details.cached_tokens").Int())
	assert.Equal(t, "data: [DONE]\n\n", string(frames[3]))
}

func TestStream_PingBecomesKeepalive(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("m")
	frames := feed(t, p, `data: {"type":"ping"}`)
	require.Len(t, frames, 1)
	assert.Equal(t, ": ping\n\n", string(frames[0]))
}

func TestStream_SkipsNoise(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("m")
	frames := feed(t, p,
		`event: message_start`,
		``,
		`: comment`,
		`data: {broken json`,
		`data: not even close`,
	)
	assert.Empty(t, frames)
}

func TestStream_UnknownToolIndexDropped(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("m")
	frames := feed(t, p,
		`data: {"type":"content_block_delta","index":4,"delta":{"type":"input_json_delta","partial_json":"{\"x\":1}"}}`,
	)
	assert.Empty(t, frames)
}

func TestStream_FinalizeWithoutMessageStop(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("m")
	feed(t, p,
		`data: {"type":"message_start","message":{"id":"msg_4","model":"m1"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"unfinished"}}`,
	)

	frames := openai.FinalizeClaudeResponseToOpenAI(p)
	require.Len(t, frames, 2)
	assert.Equal(t, "*", chunkJSON(t, frames[0]).Get("choices.0.delta.content").String())
	assert.Equal(t, "data: [DONE]\n\n", string(frames[1]))

	// Finalizing again emits nothing.
	assert.Empty(t, openai.FinalizeClaudeResponseToOpenAI(p))
}

func TestStream_MessageStopAfterFinalizeIsSilent(t *testing.T) {
	p := openai.NewConvertClaudeResponseToOpenAIParams("m")
	feed(t, p, `data: {"type":"message_stop"}`)
	assert.Empty(t, feed(t, p, `data: {"type":"message_stop"}`))
}
