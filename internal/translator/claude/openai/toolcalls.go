package openai

import "strings"

// ToolCallTracker accumulates one tool call's argument text across stream
// fragments.
type ToolCallTracker struct {
	ID          string
	Name        string
	Accumulated string

	// OpenAIIndex is the client-side tool_calls index, allocated in call
	// order and unrelated to the upstream content block index.
	OpenAIIndex int
}

// ToolCallAssembler reconstructs complete tool-call argument strings from
// partial fragments, keyed by upstream content block index. Depending on
// block size the upstream sends either incremental chunks or whole
// cumulative snapshots; both must reduce to pure deltas on the client side.
type ToolCallAssembler struct {
	trackers  map[int]*ToolCallTracker
	nextIndex int
}

// NewToolCallAssembler returns an empty assembler.
func NewToolCallAssembler() *ToolCallAssembler {
	return &ToolCallAssembler{trackers: make(map[int]*ToolCallTracker)}
}

// Register starts tracking the tool call announced at blockIndex, allocating
// the next client-side tool index.
func (a *ToolCallAssembler) Register(blockIndex int, id, name string) *ToolCallTracker {
	tracker := &ToolCallTracker{ID: id, Name: name, OpenAIIndex: a.nextIndex}
	a.nextIndex++
	a.trackers[blockIndex] = tracker
	return tracker
}

// Tracker returns the tracker registered at blockIndex, nil when the start
// event was never seen.
func (a *ToolCallAssembler) Tracker(blockIndex int) *ToolCallTracker {
	return a.trackers[blockIndex]
}

// AppendFragment feeds one argument fragment for the tool call at blockIndex
// and returns the delta to forward. A fragment that repeats the accumulated
// text as a literal prefix is a cumulative snapshot and only its suffix is
// new; anything else is an incremental chunk forwarded verbatim. ok is false
// for unknown block indexes, whose fragments have nothing to attach to.
func (a *ToolCallAssembler) AppendFragment(blockIndex int, fragment string) (delta string, ok bool) {
	tracker := a.trackers[blockIndex]
	if tracker == nil {
		return "", false
	}
	if strings.HasPrefix(fragment, tracker.Accumulated) {
		delta = fragment[len(tracker.Accumulated):]
		tracker.Accumulated = fragment
		return delta, true
	}
	tracker.Accumulated += fragment
	return fragment, true
}
