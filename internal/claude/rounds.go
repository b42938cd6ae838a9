package claude

// Round is a derived, non-owning view over a contiguous span of messages
// opened by a real user turn. End is exclusive.
type Round struct {
	Start  int
	End    int
	Tokens int
}

// GroupRounds partitions messages into conversational rounds. The first round
// always starts at index 0; every later real user turn closes the current
// round and opens the next; the final round closes at end-of-slice. The
// resulting spans are disjoint, contiguous, and cover the whole transcript.
func GroupRounds(messages []Message, est *Estimator) []Round {
	if len(messages) == 0 {
		return nil
	}
	if est == nil {
		est = &Estimator{}
	}
	var rounds []Round
	start := 0
	for i := 1; i < len(messages); i++ {
		if messages[i].IsRealUserTurn() {
			rounds = append(rounds, newRound(messages, start, i, est))
			start = i
		}
	}
	return append(rounds, newRound(messages, start, len(messages), est))
}

func newRound(messages []Message, start, end int, est *Estimator) Round {
	r := Round{Start: start, End: end}
	for i := start; i < end; i++ {
		r.Tokens += est.EstimateMessage(&messages[i])
	}
	return r
}
