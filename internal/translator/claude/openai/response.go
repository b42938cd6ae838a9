package openai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/claudegate/claudegate/internal/translator/claude/helpers"
	"github.com/claudegate/claudegate/internal/util/toolid"
)

// ConvertClaudeResponseToOpenAINonStream converts one complete Messages API
// response into one complete chat.completion response. Thinking blocks get
// the same markup the streaming path produces; content stays JSON null
// unless non-empty text was produced.
func ConvertClaudeResponseToOpenAINonStream(rawJSON []byte) ([]byte, error) {
	root := gjson.ParseBytes(rawJSON)
	if root.Get("type").String() == "error" {
		return nil, fmt.Errorf("claude: upstream error: %s", helpers.FirstString(root.Get("error.message").String(), "unknown error"))
	}

	var thinking ThinkingRenderer
	var content strings.Builder
	var toolCalls []map[string]any
	for _, block := range root.Get("content").Array() {
		switch block.Get("type").String() {
		case "thinking":
			if text := block.Get("thinking").String(); text != "" {
				content.WriteString(thinking.RenderFragment(text))
				content.WriteString(thinking.CloseSegment())
			}
		case "text":
			content.WriteString(thinking.AnswerPrefix())
			content.WriteString(block.Get("text").String())
		case "tool_use":
			args := block.Get("input").Raw
			if args == "" {
				args = "{}"
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   toolid.Encode(helpers.SanitizeToolCallID(block.Get("id").String())),
				"type": "function",
				"function": map[string]any{
					"name":      block.Get("name").String(),
					"arguments": args,
				},
			})
		}
	}

	message := map[string]any{"role": "assistant", "content": nil}
	if content.Len() > 0 {
		message["content"] = content.String()
	}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}

	stopReason := helpers.FirstString(root.Get("stop_reason").String(), "end_turn")
	usage := root.Get("usage")
	promptTokens := usage.Get("input_tokens").Int() + usage.Get("cache_creation_input_tokens").Int() + usage.Get("cache_read_input_tokens").Int()
	completionTokens := usage.Get("output_tokens").Int()
	usagePayload := map[string]any{
		"prompt_tokens":     promptTokens,
		"completion_tokens": completionTokens,
		"total_tokens":      promptTokens + completionTokens,
	}
	if cached := usage.Get("cache_read_input_tokens").Int(); cached > 0 {
		usagePayload["prompt_tokens_details"] = map[string]any{"cached_tokens": cached}
	}

	payload := map[string]any{
		"id":      helpers.NewChatCompletionID(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   helpers.FirstString(root.Get("model").String(), "claude"),
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       message,
				"finish_reason": helpers.MapStopReason(stopReason),
			},
		},
		"usage": usagePayload,
	}
	return json.Marshal(payload)
}
