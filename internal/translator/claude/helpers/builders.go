package helpers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Utility helpers shared across the Claude-to-OpenAI translators.

func FirstString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func NewChatCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", uuid.NewString())
}

func SanitizeToolCallID(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Sprintf("call_%s", uuid.NewString())
	}
	return trimmed
}

func NormalizeArguments(args string) string {
	args = strings.TrimSpace(args)
	if args == "" {
		return "{}"
	}

	// Try parsing as JSON first
	var jsonObj map[string]interface{}
	if err := json.Unmarshal([]byte(args), &jsonObj); err == nil {
		// Re-marshal to normalize formatting
		if normalized, err := json.Marshal(jsonObj); err == nil {
			return string(normalized)
		}
	}

	// If not valid JSON, wrap as a string value
	wrapped := map[string]string{"value": args}
	if normalized, err := json.Marshal(wrapped); err == nil {
		return string(normalized)
	}

	return args
}

// MapStopReason converts a Claude stop reason to the OpenAI finish_reason
// vocabulary. Reasons without a direct equivalent pass through unchanged.
func MapStopReason(stopReason string) string {
	switch stopReason {
	case "end_turn":
		return "stop"
	case "tool_use":
		return "tool_calls"
	default:
		return stopReason
	}
}

// SSE builder helpers. Chunk builders return payload maps; BuildSSEData does
// the wire framing so tests can inspect payloads without unframing.
func BuildSSEData(payload map[string]any) []byte {
	jsonBytes, _ := json.Marshal(payload)
	return []byte(fmt.Sprintf("data: %s\n\n", string(jsonBytes)))
}

func BuildKeepAlive() []byte {
	return []byte(": ping\n\n")
}

func BuildDone() []byte {
	return []byte("data: [DONE]\n\n")
}

func BuildChunk(id, model string, created int64, delta map[string]any, finishReason any) map[string]any {
	return map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": created,
		"model":   model,
		"choices": []map[string]any{
			{
				"index":         0,
				"delta":         delta,
				"finish_reason": finishReason,
			},
		},
	}
}

func BuildRoleChunk(id, model string, created int64) map[string]any {
	return BuildChunk(id, model, created, map[string]any{"role": "assistant", "content": ""}, nil)
}

func BuildContentChunk(id, model string, created int64, content string) map[string]any {
	return BuildChunk(id, model, created, map[string]any{"content": content}, nil)
}

func BuildToolCallStartChunk(id, model string, created int64, toolIndex int, callID, name string) map[string]any {
	return BuildChunk(id, model, created, map[string]any{
		"tool_calls": []map[string]any{
			{
				"index": toolIndex,
				"id":    callID,
				"type":  "function",
				"function": map[string]any{
					"name":      name,
					"arguments": "",
				},
			},
		},
	}, nil)
}

func BuildToolCallArgsChunk(id, model string, created int64, toolIndex int, argsDelta string) map[string]any {
	return BuildChunk(id, model, created, map[string]any{
		"tool_calls": []map[string]any{
			{
				"index": toolIndex,
				"function": map[string]any{
					"arguments": argsDelta,
				},
			},
		},
	}, nil)
}

func BuildFinishChunk(id, model string, created int64, finishReason string) map[string]any {
	return BuildChunk(id, model, created, map[string]any{}, finishReason)
}

func BuildUsageChunk(id, model string, created int64, inputTokens, outputTokens, cacheCreationTokens, cacheReadTokens int64) map[string]any {
	promptTokens := inputTokens + cacheCreationTokens + cacheReadTokens
	usage := map[string]any{
		"prompt_tokens":     promptTokens,
		"completion_tokens": outputTokens,
		"total_tokens":      promptTokens + outputTokens,
	}
	if cacheReadTokens > 0 {
		usage["prompt_tokens_details"] = map[string]any{"cached_tokens": cacheReadTokens}
	}
	return map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": created,
		"model":   model,
		"choices": []map[string]any{},
		"usage":   usage,
	}
}
