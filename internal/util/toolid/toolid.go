// Package toolid round-trips tool call identifiers between the Claude and
// OpenAI protocols.
package toolid

import (
	"encoding/base64"
	"strings"
)

const encodedPrefix = "call_enc_"

// Encode makes a Claude tool_use id safe to hand to OpenAI-protocol clients.
// Claude's own toolu_* ids stay within [A-Za-z0-9_-] and pass through
// untouched; anything else is base64url-wrapped behind a fixed prefix so
// Decode can restore it when the client echoes the id back.
func Encode(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return ""
	}
	if isSafe(trimmed) {
		return trimmed
	}
	return encodedPrefix + base64.RawURLEncoding.EncodeToString([]byte(trimmed))
}

// Decode restores an id produced by Encode. Ids without the well-known
// prefix are returned as-is.
func Decode(id string) string {
	trimmed := strings.TrimSpace(id)
	payload, found := strings.CutPrefix(trimmed, encodedPrefix)
	if !found {
		return trimmed
	}
	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return trimmed
	}
	return string(decoded)
}

// isSafe is deliberately ASCII-only: multibyte letters count as safe for
// unicode classifiers but not for every OpenAI-compatible client.
func isSafe(id string) bool {
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
