package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/linkgate/internal/clock"
)

// MemoryCounter keeps hit timestamps in process memory. Clients idle for
// longer than the widest window seen are dropped on the next Hit.
type MemoryCounter struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	clock     clock.Clock
	widest    time.Duration
	lastPrune time.Time
}

var _ Counter = (*MemoryCounter)(nil)

// NewMemoryCounter creates a counter. A nil clock uses system time.
func NewMemoryCounter(c clock.Clock) *MemoryCounter {
	if c == nil {
		c = clock.Real{}
	}

	return &MemoryCounter{hits: make(map[string][]time.Time), clock: c}
}

func (m *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	if window > m.widest {
		m.widest = window
	}

	m.prune(now)

	cutoff := now.Add(-window)

	kept := m.hits[key][:0]
	for _, ts := range m.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	kept = append(kept, now)
	m.hits[key] = kept

	return int64(len(kept)), nil
}

// Len reports how many clients are tracked.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.hits)
}

// prune runs at most once per widest window and deletes keys whose newest
// hit is outside it.
func (m *MemoryCounter) prune(now time.Time) {
	if now.Sub(m.lastPrune) < m.widest {
		return
	}

	m.lastPrune = now
	cutoff := now.Add(-m.widest)

	for key, stamps := range m.hits {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(m.hits, key)
		}
	}
}
