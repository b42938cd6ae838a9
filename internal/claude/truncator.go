package claude

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// Truncation defaults. The token limit leaves headroom under the backend's
// context window; the keep floor stops truncation from gutting a transcript
// down to nothing.
const (
	DefaultTokenLimit        = 180000
	DefaultMinMessagesToKeep = 2
)

// Truncator removes the oldest removable conversation content from an
// over-budget request until it fits. Whole interior rounds go first because
// round boundaries cannot strand half a tool exchange; tool pairs are the
// fallback when the transcript has too few rounds to shrink that way.
type Truncator struct {
	MinMessagesToKeep int
	Estimator         *Estimator
}

// NewTruncator returns a Truncator with the package defaults.
func NewTruncator() *Truncator {
	return &Truncator{MinMessagesToKeep: DefaultMinMessagesToKeep, Estimator: &Estimator{}}
}

func (t *Truncator) minKeep() int {
	if t.MinMessagesToKeep > 0 {
		return t.MinMessagesToKeep
	}
	return DefaultMinMessagesToKeep
}

func (t *Truncator) estimator() *Estimator {
	if t.Estimator != nil {
		return t.Estimator
	}
	return &Estimator{}
}

// Truncate mutates req.Messages in place until the estimated request size
// fits tokenLimit, reporting whether anything was removed. When nothing can
// be removed safely the request is left untouched for the backend to reject.
func (t *Truncator) Truncate(req *Request, tokenLimit int) bool {
	if req == nil || tokenLimit <= 0 {
		return false
	}
	est := t.estimator()
	total := est.EstimateRequest(req)
	if total <= tokenLimit {
		return false
	}
	if len(req.Messages) <= t.minKeep() {
		log.Warnf("truncator: %d messages over budget (%d > %d tokens) but at the keep floor, leaving untouched", len(req.Messages), total, tokenLimit)
		return false
	}
	overage := total - tokenLimit
	if t.dropRounds(req, est, overage) {
		return true
	}
	return t.dropToolPairs(req, est, overage)
}

// dropRounds walks interior rounds oldest first, marking whole rounds until
// the freed estimate covers the overage. The first and last rounds are never
// touched.
func (t *Truncator) dropRounds(req *Request, est *Estimator, overage int) bool {
	rounds := GroupRounds(req.Messages, est)
	if len(rounds) <= 2 {
		return false
	}
	freed := 0
	dropped := 0
	var indices []int
	for _, r := range rounds[1 : len(rounds)-1] {
		if freed >= overage {
			break
		}
		for i := r.Start; i < r.End; i++ {
			indices = append(indices, i)
		}
		freed += r.Tokens
		dropped++
	}
	if dropped == 0 {
		return false
	}
	req.Messages = removeIndices(req.Messages, indices)
	if issues := ValidateTranscript(req.Messages); len(issues) > 0 {
		log.Warnf("truncator: transcript issues after dropping %d rounds: %v", dropped, issues)
	}
	log.Debugf("truncator: dropped %d interior rounds, %d messages, ~%d tokens freed", dropped, len(indices), freed)
	return true
}

// dropToolPairs removes assistant/user tool exchanges when round removal
// cannot fire, sparing the first exchange and the trailing keep window.
func (t *Truncator) dropToolPairs(req *Request, est *Estimator, overage int) bool {
	pairs := FindToolPairs(req.Messages, est)
	freed := 0
	var indices []int
	for _, p := range pairs {
		if freed >= overage {
			break
		}
		if p.AssistantIndex < 2 || p.UserIndex >= len(req.Messages)-t.minKeep() {
			continue
		}
		indices = append(indices, p.AssistantIndex, p.UserIndex)
		freed += p.Tokens
	}
	if len(indices) == 0 {
		return false
	}
	req.Messages = removeIndices(req.Messages, indices)
	log.Debugf("truncator: dropped %d tool pairs, ~%d tokens freed", len(indices)/2, freed)
	return true
}

// removeIndices drops the given message indices highest first, so earlier
// removals never shift the positions of later ones.
func removeIndices(messages []Message, indices []int) []Message {
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, idx := range indices {
		if idx < 0 || idx >= len(messages) {
			continue
		}
		messages = append(messages[:idx], messages[idx+1:]...)
	}
	return messages
}
