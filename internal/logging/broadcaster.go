package logging

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultBacklogSize = 500

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind loses lines rather than blocking the logger.
const subscriberBuffer = 64

// Broadcaster is a logrus hook that stores formatted log lines in a circular
// buffer and fans new lines out to live subscribers.
type Broadcaster struct {
	// Circular buffer storing formatted lines in chronological order
	entries [][]byte
	// Current write position (circular)
	writeIdx int
	// Maximum number of lines to store
	maxEntries int
	// Current line count (less than maxEntries when not full)
	count int

	subscribers map[chan []byte]struct{}
	mu          sync.RWMutex
}

// NewBroadcaster creates a broadcaster retaining up to maxEntries lines.
func NewBroadcaster(maxEntries int) *Broadcaster {
	if maxEntries <= 0 {
		maxEntries = defaultBacklogSize
	}
	return &Broadcaster{
		entries:     make([][]byte, maxEntries),
		maxEntries:  maxEntries,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Levels returns the log levels this hook processes.
func (b *Broadcaster) Levels() []logrus.Level {
	return logrus.AllLevels[:]
}

// Fire formats the entry once, stores it in the ring, and delivers it to
// every subscriber that can keep up.
func (b *Broadcaster) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	data := []byte(strings.TrimRight(line, "\n"))

	b.mu.Lock()
	defer b.mu.Unlock()

	// Rotate: the circular buffer overwrites the oldest line.
	b.entries[b.writeIdx] = data
	b.writeIdx = (b.writeIdx + 1) % b.maxEntries
	if b.count < b.maxEntries {
		b.count++
	}

	for ch := range b.subscribers {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

// Backlog returns the retained lines in chronological order.
func (b *Broadcaster) Backlog() [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([][]byte, 0, b.count)
	if b.count < b.maxEntries {
		for i := 0; i < b.count; i++ {
			result = append(result, b.entries[i])
		}
	} else {
		// Buffer full, start from writeIdx (oldest line)
		for i := 0; i < b.maxEntries; i++ {
			idx := (b.writeIdx + i) % b.maxEntries
			result = append(result, b.entries[idx])
		}
	}
	return result
}

// Subscribe registers a live feed of new lines. The cancel function removes
// the subscription and closes the channel; it is safe to call twice.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Size returns the current number of retained lines.
func (b *Broadcaster) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
