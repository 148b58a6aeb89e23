// Package kv defines the flat string-keyed store shared by link records,
// sessions and in-flight OAuth transactions, plus adapters for the
// supported backends.
//
// Record kinds are told apart by key prefix only, so a single List call
// enumerates every kind.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or has expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrExists is returned by Put with IfAbsent when the key is taken.
	ErrExists = errors.New("kv: key already exists")
)

// DefaultListLimit caps a List page when no limit is given.
const DefaultListLimit = 1000

// Metadata is small, string-valued data stored alongside a value.
type Metadata map[string]string

// Entry is a value with its metadata.
type Entry struct {
	Key      string
	Value    string
	Metadata Metadata
}

// ListOptions selects a page of keys.
type ListOptions struct {
	Prefix string
	Limit  int
	Cursor string
}

// ListResult is one page of keys in backend order.
// Cursor is empty when Complete is true.
type ListResult struct {
	Keys     []string
	Cursor   string
	Complete bool
}

// Store is the key-value contract. Backends are assumed eventually
// consistent with per-key read-after-write.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithMetadata(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key, value string, opts ...PutOption) error
	// Delete is idempotent: a missing key is not an error.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}

// Pinger reports backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PutOption configures a Put.
type PutOption func(*PutConfig)

// PutConfig is the resolved set of Put options.
type PutConfig struct {
	Metadata Metadata
	TTL      time.Duration
	IfAbsent bool
}

// WithMetadata stores md alongside the value.
func WithMetadata(md Metadata) PutOption {
	return func(c *PutConfig) {
		c.Metadata = md
	}
}

// WithTTL makes the backend evict the record after ttl.
func WithTTL(ttl time.Duration) PutOption {
	return func(c *PutConfig) {
		c.TTL = ttl
	}
}

// IfAbsent makes Put fail with ErrExists instead of overwriting a live key.
func IfAbsent() PutOption {
	return func(c *PutConfig) {
		c.IfAbsent = true
	}
}

// NewPutConfig applies opts in order.
func NewPutConfig(opts ...PutOption) PutConfig {
	var cfg PutConfig

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}

	return limit
}
