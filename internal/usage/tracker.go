// Package usage keeps in-memory request and token statistics per model.
package usage

import (
	"sync"
	"time"
)

// ModelStats aggregates counters for one upstream model.
type ModelStats struct {
	Requests            int64     `json:"requests"`              // Total requests routed to this model
	Failures            int64     `json:"failures"`              // Requests that ended in an error
	TruncatedRequests   int64     `json:"truncated_requests"`    // Requests whose transcript was cut down before sending
	InputTokens         int64     `json:"input_tokens"`          // Prompt tokens reported upstream
	OutputTokens        int64     `json:"output_tokens"`         // Completion tokens reported upstream
	CacheReadTokens     int64     `json:"cache_read_tokens"`     // Prompt tokens served from cache
	CacheCreationTokens int64     `json:"cache_creation_tokens"` // Prompt tokens written to cache
	LastUsed            time.Time `json:"last_used"`             // Last request timestamp
}

// Record is one finished request worth of accounting data.
type Record struct {
	Model               string
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
	Truncated           bool
	Failed              bool
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	StartedAt     time.Time             `json:"started_at"`
	TotalRequests int64                 `json:"total_requests"`
	TotalFailures int64                 `json:"total_failures"`
	Models        map[string]ModelStats `json:"models"`
}

// Tracker accumulates per-model statistics. Safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	startedAt time.Time
	models    map[string]*ModelStats
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		startedAt: time.Now(),
		models:    make(map[string]*ModelStats),
	}
}

// Record folds one finished request into the counters. Records without a
// model name land under "unknown" so failures before translation still count.
func (t *Tracker) Record(rec Record) {
	model := rec.Model
	if model == "" {
		model = "unknown"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stats := t.models[model]
	if stats == nil {
		stats = &ModelStats{}
		t.models[model] = stats
	}

	stats.Requests++
	if rec.Failed {
		stats.Failures++
	}
	if rec.Truncated {
		stats.TruncatedRequests++
	}
	stats.InputTokens += rec.InputTokens
	stats.OutputTokens += rec.OutputTokens
	stats.CacheReadTokens += rec.CacheReadTokens
	stats.CacheCreationTokens += rec.CacheCreationTokens
	stats.LastUsed = time.Now()
}

// Snapshot returns a copy of all counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		StartedAt: t.startedAt,
		Models:    make(map[string]ModelStats, len(t.models)),
	}
	for model, stats := range t.models {
		snap.Models[model] = *stats
		snap.TotalRequests += stats.Requests
		snap.TotalFailures += stats.Failures
	}
	return snap
}
