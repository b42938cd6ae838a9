package toolid

import (
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		encoded bool
	}{
		{
			name:    "claude tool_use id unchanged",
			input:   "toolu_01A09q90qw90lq917835lq9",
			encoded: false,
		},
		{
			name:    "openai style id unchanged",
			input:   "call_123abcXYZ",
			encoded: false,
		},
		{
			name:    "id with punctuation encoded",
			input:   "server.search:3",
			encoded: true,
		},
		{
			name:    "id with spaces encoded",
			input:   "tool call 1",
			encoded: true,
		},
		{
			name:    "multibyte id encoded",
			input:   "werkzeug-übersicht",
			encoded: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Encode(tc.input)
			if tc.encoded {
				if encoded == tc.input {
					t.Fatalf("expected encoded ID to differ for %q", tc.input)
				}
				if !isSafe(encoded) {
					t.Fatalf("encoded ID %q still carries unsafe characters", encoded)
				}
				if decoded := Decode(encoded); decoded != tc.input {
					t.Fatalf("expected decode %q, got %q", tc.input, decoded)
				}
			} else {
				if encoded != tc.input {
					t.Fatalf("expected safe ID to remain unchanged, got %q", encoded)
				}
			}
		})
	}
}

func TestDecodeHandlesPlainIDs(t *testing.T) {
	if got := Decode("call_abc"); got != "call_abc" {
		t.Fatalf("plain IDs should pass through, got %q", got)
	}
	if got := Decode("call_enc_%%%"); got != "call_enc_%%%" {
		t.Fatalf("undecodable payloads should pass through, got %q", got)
	}
}

func TestEncodeEmpty(t *testing.T) {
	if got := Encode("   "); got != "" {
		t.Fatalf("blank IDs should encode to empty, got %q", got)
	}
}
