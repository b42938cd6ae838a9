package claude

import (
	"regexp"
	"strconv"
)

var tokenLimitRe = regexp.MustCompile(`(?i)prompt is too long:\s*(\d+)\s*tokens?\s*>\s*(\d+)\s*maximum`)

// ParseTokenLimitError extracts the actual and maximum token counts from the
// backend's "prompt is too long: N tokens > M maximum" rejection text,
// matched case-insensitively. ok is false when the text is not a token-limit
// rejection.
func ParseTokenLimitError(text string) (actual, limit int, ok bool) {
	m := tokenLimitRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	actual, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	limit, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return actual, limit, true
}
