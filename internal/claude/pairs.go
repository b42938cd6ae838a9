package claude

// ToolPair identifies an assistant message carrying tool_use blocks
// immediately followed by the user message carrying tool results. Pairing is
// purely positional; id matching is ValidateTranscript's job.
type ToolPair struct {
	AssistantIndex int
	UserIndex      int
	Tokens         int
}

// FindToolPairs scans adjacent message pairs and returns every qualifying
// tool pair in transcript order.
func FindToolPairs(messages []Message, est *Estimator) []ToolPair {
	if est == nil {
		est = &Estimator{}
	}
	var pairs []ToolPair
	for i := 0; i+1 < len(messages); i++ {
		if messages[i].Role != RoleAssistant || !messages[i].HasToolUse() {
			continue
		}
		if messages[i+1].Role != RoleUser || !messages[i+1].HasToolResult() {
			continue
		}
		pairs = append(pairs, ToolPair{
			AssistantIndex: i,
			UserIndex:      i + 1,
			Tokens:         est.EstimateMessage(&messages[i]) + est.EstimateMessage(&messages[i+1]),
		})
	}
	return pairs
}
