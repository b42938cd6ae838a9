// Package openai converts Claude Messages API traffic to and from the OpenAI
// chat completions protocol: requests inbound, responses outbound, streamed
// or whole.
package openai

import "strings"

// Markup emitted around thinking segments. Every non-empty thinking line is
// rendered as an italicized bullet; a horizontal rule separates the last
// thinking segment from the answer proper.
const (
	thinkingOpenMarker = "💭 **Thinking...**"
	thinkingBulletOpen = "\n\n- *"
	thinkingEmphClose  = "*"
	answerStartMarker  = "\n\n---\n\n"
)

// ThinkingRenderer re-renders a stream of thinking-text fragments as
// bulleted, emphasis-bracketed markup, keeping bracket state across fragment
// boundaries so the output stays balanced no matter how the text is split.
type ThinkingRenderer struct {
	InThinking    bool
	HadThinking   bool
	AnswerStarted bool

	// needsBullet is set while the renderer is between lines: the next
	// non-whitespace character owes a fresh bullet and emphasis open.
	needsBullet bool
}

// RenderFragment converts one incoming thinking fragment to output markup.
// The first fragment of a segment also emits the segment opening marker.
func (r *ThinkingRenderer) RenderFragment(fragment string) string {
	var sb strings.Builder
	if !r.InThinking {
		sb.WriteString(thinkingOpenMarker)
		r.InThinking = true
		r.HadThinking = true
		r.needsBullet = true
	}
	for _, ch := range fragment {
		if ch == '\n' {
			if !r.needsBullet {
				sb.WriteString(thinkingEmphClose)
				r.needsBullet = true
			}
			continue
		}
		if r.needsBullet {
			if ch == ' ' || ch == '\t' || ch == '\r' {
				continue
			}
			sb.WriteString(thinkingBulletOpen)
			r.needsBullet = false
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// CloseSegment ends the current thinking segment, emitting the emphasis
// close still owed when a line is open. Harmless outside a segment.
func (r *ThinkingRenderer) CloseSegment() string {
	if !r.InThinking {
		return ""
	}
	r.InThinking = false
	if r.needsBullet {
		return ""
	}
	r.needsBullet = true
	return thinkingEmphClose
}

// AnswerPrefix returns the one-time separator owed before the first ordinary
// text that follows a thinking segment, empty otherwise.
func (r *ThinkingRenderer) AnswerPrefix() string {
	if r.HadThinking && !r.AnswerStarted {
		r.AnswerStarted = true
		return answerStartMarker
	}
	return ""
}
