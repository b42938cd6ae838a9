package openai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/claudegate/claudegate/internal/claude"
	"github.com/claudegate/claudegate/internal/translator/claude/helpers"
	"github.com/claudegate/claudegate/internal/util/toolid"
)

const defaultMaxTokens = 8192

// reasoning_effort maps onto extended-thinking budgets.
var thinkingBudgets = map[string]int{
	"low":    1024,
	"medium": 8192,
	"high":   24576,
}

// ConvertOpenAIRequestToClaude translates a chat completions request body
// into a typed Messages API request. System and developer messages fold into
// the system prompt; tool role messages become tool_result user turns;
// adjacent same-role messages merge so the transcript keeps strict
// alternation.
func ConvertOpenAIRequestToClaude(rawJSON []byte) (*claude.Request, error) {
	root := gjson.ParseBytes(rawJSON)
	messages := root.Get("messages")
	if !messages.IsArray() || len(messages.Array()) == 0 {
		return nil, fmt.Errorf("claude: request has no messages")
	}

	req := &claude.Request{
		Model:     helpers.MapModel(root.Get("model").String()),
		MaxTokens: defaultMaxTokens,
		Stream:    root.Get("stream").Bool(),
	}
	if v := root.Get("max_completion_tokens"); v.Exists() && v.Int() > 0 {
		req.MaxTokens = int(v.Int())
	} else if v := root.Get("max_tokens"); v.Exists() && v.Int() > 0 {
		req.MaxTokens = int(v.Int())
	}
	if v := root.Get("temperature"); v.Exists() {
		t := v.Float()
		req.Temperature = &t
	}
	if v := root.Get("top_p"); v.Exists() {
		t := v.Float()
		req.TopP = &t
	}
	if v := root.Get("stop"); v.Exists() {
		if v.IsArray() {
			for _, s := range v.Array() {
				req.StopSequences = append(req.StopSequences, s.String())
			}
		} else if s := v.String(); s != "" {
			req.StopSequences = []string{s}
		}
	}
	if user := root.Get("user").String(); user != "" {
		req.Metadata = json.RawMessage(fmt.Sprintf(`{"user_id":%s}`, strconv.Quote(user)))
	}

	convertTools(root, req)
	convertToolChoice(root, req)
	applyReasoningEffort(root, req)
	convertMessages(messages, req)
	return req, nil
}

func convertMessages(messages gjson.Result, req *claude.Request) {
	var system []string
	var out []claude.Message
	appendTurn := func(role string, blocks ...claude.ContentBlock) {
		if len(blocks) == 0 {
			return
		}
		if len(out) > 0 && out[len(out)-1].Role == role {
			out[len(out)-1].Content = append(out[len(out)-1].Content, blocks...)
			return
		}
		out = append(out, claude.Message{Role: role, Content: blocks})
	}

	for _, msg := range messages.Array() {
		switch msg.Get("role").String() {
		case "system", "developer":
			if text := contentText(msg.Get("content")); text != "" {
				system = append(system, text)
			}
		case "user":
			appendTurn(claude.RoleUser, userBlocks(msg.Get("content"))...)
		case "assistant":
			appendTurn(claude.RoleAssistant, assistantBlocks(msg)...)
		case "tool":
			id := toolid.Decode(msg.Get("tool_call_id").String())
			result, err := json.Marshal(contentText(msg.Get("content")))
			if err != nil {
				result = []byte(`""`)
			}
			appendTurn(claude.RoleUser, claude.NewToolResultBlock(id, result))
		}
	}

	if len(system) > 0 {
		if data, err := json.Marshal(strings.Join(system, "\n\n")); err == nil {
			req.System = data
		}
	}
	req.Messages = out
}

// contentText flattens a string-or-parts content value to plain text.
func contentText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	var parts []string
	for _, part := range content.Array() {
		if part.Get("type").String() == "text" {
			parts = append(parts, part.Get("text").String())
		}
	}
	return strings.Join(parts, "")
}

func userBlocks(content gjson.Result) []claude.ContentBlock {
	if content.Type == gjson.String {
		if content.String() == "" {
			return nil
		}
		return []claude.ContentBlock{claude.NewTextBlock(content.String())}
	}
	var blocks []claude.ContentBlock
	for _, part := range content.Array() {
		switch part.Get("type").String() {
		case "text":
			blocks = append(blocks, claude.NewTextBlock(part.Get("text").String()))
		case "image_url":
			if block, ok := imageBlock(part.Get("image_url.url").String()); ok {
				blocks = append(blocks, block)
			}
		}
	}
	return blocks
}

func assistantBlocks(msg gjson.Result) []claude.ContentBlock {
	var blocks []claude.ContentBlock
	if text := contentText(msg.Get("content")); text != "" {
		blocks = append(blocks, claude.NewTextBlock(text))
	}
	for _, call := range msg.Get("tool_calls").Array() {
		args := helpers.NormalizeArguments(call.Get("function.arguments").String())
		blocks = append(blocks, claude.NewToolUseBlock(
			toolid.Decode(call.Get("id").String()),
			call.Get("function.name").String(),
			json.RawMessage(args),
		))
	}
	return blocks
}

func imageBlock(url string) (claude.ContentBlock, bool) {
	if url == "" {
		return claude.ContentBlock{}, false
	}
	if mediaType, data, ok := parseDataURI(url); ok {
		return claude.NewImageBlock(mediaType, data), true
	}
	return claude.ContentBlock{Type: claude.ContentTypeImage, Source: &claude.ImageSource{Type: "url", URL: url}}, true
}

func parseDataURI(uri string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found || payload == "" {
		return "", "", false
	}
	mediaType = strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "image/png"
	}
	return mediaType, payload, true
}

func convertTools(root gjson.Result, req *claude.Request) {
	for _, tool := range root.Get("tools").Array() {
		if tool.Get("type").String() != "function" {
			continue
		}
		fn := tool.Get("function")
		schema := fn.Get("parameters").Raw
		if schema == "" {
			schema = `{"type":"object","properties":{}}`
		}
		req.Tools = append(req.Tools, claude.Tool{
			Name:        fn.Get("name").String(),
			Description: fn.Get("description").String(),
			InputSchema: json.RawMessage(schema),
		})
	}
}

func convertToolChoice(root gjson.Result, req *claude.Request) {
	choice := root.Get("tool_choice")
	if !choice.Exists() {
		return
	}
	if choice.Type == gjson.String {
		switch choice.String() {
		case "none":
			req.ToolChoice = json.RawMessage(`{"type":"none"}`)
		case "auto":
			req.ToolChoice = json.RawMessage(`{"type":"auto"}`)
		case "required":
			req.ToolChoice = json.RawMessage(`{"type":"any"}`)
		}
		return
	}
	if name := choice.Get("function.name").String(); name != "" {
		req.ToolChoice = json.RawMessage(fmt.Sprintf(`{"type":"tool","name":%s}`, strconv.Quote(name)))
	}
}

func applyReasoningEffort(root gjson.Result, req *claude.Request) {
	budget, ok := thinkingBudgets[root.Get("reasoning_effort").String()]
	if !ok {
		return
	}
	// Thinking cannot be combined with a forced tool choice.
	if tc := gjson.GetBytes(req.ToolChoice, "type").String(); tc == "tool" || tc == "any" {
		return
	}
	req.Thinking = &claude.Thinking{Type: "enabled", BudgetTokens: budget}
	if req.MaxTokens <= budget {
		req.MaxTokens = budget + defaultMaxTokens
	}
	// The backend rejects sampling overrides while thinking is enabled.
	req.Temperature = nil
	req.TopP = nil
}
