package claude

import (
	"encoding/json"
	"math"
	"regexp"
)

// Token estimation defaults. The ratio is an empirical chars-per-token figure
// good enough for budget decisions; the per-image cost is flat because raw
// base64 length wildly overstates what the backend actually charges.
const (
	DefaultCharsPerToken = 3.5
	DefaultImageTokens   = 1600
)

const imagePlaceholder = "[IMAGE]"

var dataURIRe = regexp.MustCompile(`data:[a-zA-Z0-9.+-]+/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=_-]+`)

// Estimator sizes request fragments in tokens using a character-ratio
// heuristic with flat per-image accounting. The zero value uses the package
// defaults; the fields exist so tests and callers can tune the constants.
type Estimator struct {
	CharsPerToken float64
	ImageTokens   int
}

func (e *Estimator) ratio() float64 {
	if e.CharsPerToken > 0 {
		return e.CharsPerToken
	}
	return DefaultCharsPerToken
}

func (e *Estimator) perImage() int {
	if e.ImageTokens > 0 {
		return e.ImageTokens
	}
	return DefaultImageTokens
}

// EstimateValue sizes an arbitrary request fragment. Typed transcript values
// route through per-message image accounting; anything else is serialized and
// scanned for embedded base64 data URIs. Nil input counts as zero.
func (e *Estimator) EstimateValue(v any) int {
	switch val := v.(type) {
	case nil:
		return 0
	case *Request:
		return e.EstimateRequest(val)
	case Request:
		return e.EstimateRequest(&val)
	case []Message:
		return e.EstimateMessages(val)
	case *Message:
		return e.EstimateMessage(val)
	case Message:
		return e.EstimateMessage(&val)
	case json.RawMessage:
		return e.estimateText(string(val))
	case []byte:
		return e.estimateText(string(val))
	case string:
		return e.estimateText(val)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return e.estimateText(string(data))
	}
}

// EstimateRequest sizes a full request body: system prompt and tool
// declarations plus every message.
func (e *Estimator) EstimateRequest(req *Request) int {
	if req == nil {
		return 0
	}
	total := e.estimateText(string(req.System))
	if len(req.Tools) > 0 {
		if data, err := json.Marshal(req.Tools); err == nil {
			total += e.estimateText(string(data))
		}
	}
	return total + e.EstimateMessages(req.Messages)
}

// EstimateMessages sizes a message slice.
func (e *Estimator) EstimateMessages(messages []Message) int {
	total := 0
	for i := range messages {
		total += e.EstimateMessage(&messages[i])
	}
	return total
}

// EstimateMessage sizes one message. Image blocks are replaced by a short
// placeholder and charged the flat per-image cost instead of their serialized
// payload length.
func (e *Estimator) EstimateMessage(m *Message) int {
	if m == nil {
		return 0
	}
	images := 0
	blocks := make([]ContentBlock, 0, len(m.Content))
	for _, block := range m.Content {
		if block.Type == ContentTypeImage {
			images++
			blocks = append(blocks, ContentBlock{Type: ContentTypeText, Text: imagePlaceholder})
			continue
		}
		blocks = append(blocks, block)
	}
	data, err := json.Marshal(Message{Role: m.Role, Content: blocks})
	if err != nil {
		return images * e.perImage()
	}
	return e.estimateText(string(data)) + images*e.perImage()
}

func (e *Estimator) estimateText(text string) int {
	if text == "" {
		return 0
	}
	images := 0
	stripped := dataURIRe.ReplaceAllStringFunc(text, func(string) string {
		images++
		return imagePlaceholder
	})
	return int(math.Ceil(float64(len(stripped))/e.ratio())) + images*e.perImage()
}
