package claude

import (
	"fmt"
	"slices"
)

// ValidateTranscript checks the structural invariants a transcript should
// hold before forwarding: non-empty, user-first, strict role alternation, and
// adjacent tool_use/tool_result pairing in both directions. The returned
// issue list is advisory; callers log it and proceed.
func ValidateTranscript(messages []Message) []string {
	if len(messages) == 0 {
		return []string{"transcript is empty"}
	}
	var issues []string
	if messages[0].Role != RoleUser {
		issues = append(issues, fmt.Sprintf("first message has role %q, want %q", messages[0].Role, RoleUser))
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].Role == messages[i-1].Role {
			issues = append(issues, fmt.Sprintf("messages %d and %d share role %q", i-1, i, messages[i].Role))
		}
	}
	for i := range messages {
		for _, id := range messages[i].ToolResultIDs() {
			if i == 0 || !slices.Contains(messages[i-1].ToolUseIDs(), id) {
				issues = append(issues, fmt.Sprintf("orphaned tool_result %q at message %d", id, i))
			}
		}
	}
	for i := range messages {
		for _, id := range messages[i].ToolUseIDs() {
			if i+1 >= len(messages) || !slices.Contains(messages[i+1].ToolResultIDs(), id) {
				issues = append(issues, fmt.Sprintf("orphaned tool_use %q at message %d", id, i))
			}
		}
	}
	return issues
}
