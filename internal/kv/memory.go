package kv

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/serroba/linkgate/internal/clock"
)

type memoryRecord struct {
	value     string
	metadata  Metadata
	expiresAt time.Time // zero means no TTL
}

func (r memoryRecord) expired(now time.Time) bool {
	return !r.expiresAt.IsZero() && !now.Before(r.expiresAt)
}

// MemoryStore is an in-process Store. Expired records are invisible and
// removed lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	clock   clock.Clock
}

// NewMemoryStore creates an empty store. A nil clock uses system time.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real{}
	}

	return &MemoryStore{
		records: make(map[string]memoryRecord),
		clock:   c,
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	entry, err := m.GetWithMetadata(ctx, key)
	if err != nil {
		return "", err
	}

	return entry.Value, nil
}

func (m *MemoryStore) GetWithMetadata(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.live(key)
	if !ok {
		return nil, ErrNotFound
	}

	return &Entry{Key: key, Value: rec.value, Metadata: maps.Clone(rec.metadata)}, nil
}

func (m *MemoryStore) Put(_ context.Context, key, value string, opts ...PutOption) error {
	cfg := NewPutConfig(opts...)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(key); ok && cfg.IfAbsent {
		return ErrExists
	}

	rec := memoryRecord{value: value, metadata: maps.Clone(cfg.Metadata)}
	if cfg.TTL > 0 {
		rec.expiresAt = m.clock.Now().Add(cfg.TTL)
	}

	m.records[key] = rec

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)

	return nil
}

// List returns keys in lexical order. The cursor is the last key returned.
func (m *MemoryStore) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	limit := normalizeLimit(opts.Limit)

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.records))

	for key := range m.records {
		if !strings.HasPrefix(key, opts.Prefix) || key <= opts.Cursor {
			continue
		}

		if _, ok := m.live(key); ok {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	result := &ListResult{Complete: len(keys) <= limit}
	if !result.Complete {
		keys = keys[:limit]
		result.Cursor = keys[len(keys)-1]
	}

	result.Keys = keys

	return result, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// live returns the record for key, dropping it if expired. Caller holds mu.
func (m *MemoryStore) live(key string) (memoryRecord, bool) {
	rec, ok := m.records[key]
	if !ok {
		return memoryRecord{}, false
	}

	if rec.expired(m.clock.Now()) {
		delete(m.records, key)

		return memoryRecord{}, false
	}

	return rec, true
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)
