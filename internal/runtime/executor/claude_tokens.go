package executor

import (
	"encoding/json"

	"github.com/tiktoken-go/tokenizer"

	"github.com/claudegate/claudegate/internal/claude"
)

// countClaudeRequestTokens approximates the prompt size of a messages payload
// with tiktoken. Anthropic does not publish its tokenizer, so O200kBase plus
// a character fallback is the closest local estimate.
func countClaudeRequestTokens(_ string, payload []byte) int64 {
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		return int64(len(payload) / 4)
	}

	countOrEstimate := func(text string) int {
		if text == "" {
			return 0
		}
		ids, _, errCount := enc.Encode(text)
		if errCount != nil {
			return len(text) / 4
		}
		return len(ids)
	}

	var req claude.Request
	if err = json.Unmarshal(payload, &req); err != nil {
		return int64(len(payload) / 4)
	}

	total := 0

	for _, text := range systemTextParts(req.System) {
		total += countOrEstimate(text)
	}

	for _, msg := range req.Messages {
		total += countOrEstimate(msg.Role)
		for _, block := range msg.Content {
			switch block.Type {
			case claude.ContentTypeText:
				total += countOrEstimate(block.Text)
			case claude.ContentTypeThinking:
				total += countOrEstimate(block.Thinking)
			case claude.ContentTypeToolUse:
				total += countOrEstimate(block.Name)
				total += countOrEstimate(string(block.Input))
			case claude.ContentTypeToolResult:
				total += countOrEstimate(string(block.Content))
			}
			// Images are skipped; their cost depends on dimensions, not bytes.
		}
	}

	for _, tool := range req.Tools {
		total += countOrEstimate(tool.Name)
		total += countOrEstimate(tool.Description)
		total += countOrEstimate(string(tool.InputSchema))
	}

	// Overhead for the request framing.
	total += 3

	return int64(total)
}

// systemTextParts extracts the countable text of a system prompt, which may
// be a plain string or an array of text blocks.
func systemTextParts(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	var blocks []claude.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return []string{string(raw)}
	}
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return parts
}
