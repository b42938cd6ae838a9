// Package claude defines the Claude Messages API data model shared by the
// request translator, the transcript truncator, and the upstream executor,
// together with the token-budget truncation logic that operates on it.
package claude

import "encoding/json"

// Message roles accepted by the Messages API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types.
const (
	ContentTypeText       = "text"
	ContentTypeThinking   = "thinking"
	ContentTypeToolUse    = "tool_use"
	ContentTypeToolResult = "tool_result"
	ContentTypeImage      = "image"
)

// Request is a Claude Messages API request body. Messages is mutated in place
// by the truncator; System and Tools are never rewritten and only contribute
// to size accounting.
type Request struct {
	Model         string          `json:"model"`
	MaxTokens     int             `json:"max_tokens"`
	System        json.RawMessage `json:"system,omitempty"`
	Messages      []Message       `json:"messages"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Thinking      *Thinking       `json:"thinking,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Thinking enables extended thinking with a token budget.
type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Tool declares a tool the model may call.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Message is one conversation turn.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UnmarshalJSON accepts both the canonical block-array form of message
// content and the string shorthand, promoting a bare string to a single text
// block so downstream code only ever sees blocks.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = nil
	trimmed := string(raw.Content)
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if raw.Content[0] == '"' {
		var text string
		if err := json.Unmarshal(raw.Content, &text); err != nil {
			return err
		}
		m.Content = []ContentBlock{{Type: ContentTypeText, Text: text}}
		return nil
	}
	return json.Unmarshal(raw.Content, &m.Content)
}

// IsToolResultOnly reports whether the message consists entirely of
// tool_result blocks. An empty message does not qualify.
func (m *Message) IsToolResultOnly() bool {
	if len(m.Content) == 0 {
		return false
	}
	for _, block := range m.Content {
		if block.Type != ContentTypeToolResult {
			return false
		}
	}
	return true
}

// IsRealUserTurn reports whether the message opens a conversational round: a
// user turn that is not merely tool results being returned to the model.
func (m *Message) IsRealUserTurn() bool {
	return m.Role == RoleUser && !m.IsToolResultOnly()
}

// HasToolUse reports whether the message carries at least one tool_use block.
func (m *Message) HasToolUse() bool {
	for _, block := range m.Content {
		if block.Type == ContentTypeToolUse {
			return true
		}
	}
	return false
}

// HasToolResult reports whether the message carries at least one tool_result
// block.
func (m *Message) HasToolResult() bool {
	for _, block := range m.Content {
		if block.Type == ContentTypeToolResult {
			return true
		}
	}
	return false
}

// ToolUseIDs returns the ids of all tool_use blocks in order.
func (m *Message) ToolUseIDs() []string {
	var ids []string
	for _, block := range m.Content {
		if block.Type == ContentTypeToolUse {
			ids = append(ids, block.ID)
		}
	}
	return ids
}

// ToolResultIDs returns the tool_use_ids referenced by all tool_result blocks
// in order.
func (m *Message) ToolResultIDs() []string {
	var ids []string
	for _, block := range m.Content {
		if block.Type == ContentTypeToolResult {
			ids = append(ids, block.ToolUseID)
		}
	}
	return ids
}

// ContentBlock is a tagged content variant. Type selects which of the
// remaining fields are meaningful; dispatch on Type, never on field presence.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`

	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

// ImageSource carries an image payload, base64-embedded or by URL.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// NewTextBlock builds a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// NewToolUseBlock builds a tool_use content block.
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: ContentTypeToolUse, ID: id, Name: name, Input: input}
}

// NewToolResultBlock builds a tool_result content block. content holds the
// result payload, either a JSON string or a block array.
func NewToolResultBlock(toolUseID string, content json.RawMessage) ContentBlock {
	return ContentBlock{Type: ContentTypeToolResult, ToolUseID: toolUseID, Content: content}
}

// NewImageBlock builds a base64-embedded image content block.
func NewImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: ContentTypeImage, Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: data}}
}
