package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store backed by a single
// kv_entries table. PostgreSQL has no native TTL: expired rows are invisible
// to reads, deleted when a read hits one, and purged in bulk whenever a
// listing starts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the kv_entries table and its expiry index if needed.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv_entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			metadata   JSONB,
			expires_at TIMESTAMPTZ
		)
	`); err != nil {
		return err
	}

	_, err := p.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS kv_entries_expires_at
		ON kv_entries (expires_at) WHERE expires_at IS NOT NULL
	`)

	return err
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	entry, err := p.GetWithMetadata(ctx, key)
	if err != nil {
		return "", err
	}

	return entry.Value, nil
}

func (p *PostgresStore) GetWithMetadata(ctx context.Context, key string) (*Entry, error) {
	query := `
		SELECT value, metadata, (expires_at IS NOT NULL AND expires_at <= now())
		FROM kv_entries
		WHERE key = $1
	`

	var (
		entry   = Entry{Key: key}
		expired bool
	)

	err := p.pool.QueryRow(ctx, query, key).Scan(&entry.Value, &entry.Metadata, &expired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if expired {
		// A failed delete leaves the row for the next read or listing.
		_, _ = p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1 AND expires_at <= now()`, key)

		return nil, ErrNotFound
	}

	return &entry, nil
}

func (p *PostgresStore) Put(ctx context.Context, key, value string, opts ...PutOption) error {
	cfg := NewPutConfig(opts...)

	var ttlSeconds *float64

	if cfg.TTL > 0 {
		secs := cfg.TTL.Seconds()
		ttlSeconds = &secs
	}

	// An IfAbsent insert may still replace a row whose TTL has lapsed.
	query := `
		INSERT INTO kv_entries (key, value, metadata, expires_at)
		VALUES ($1, $2, $3, now() + make_interval(secs => $4::double precision))
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, metadata = EXCLUDED.metadata, expires_at = EXCLUDED.expires_at
	`
	if cfg.IfAbsent {
		query += ` WHERE kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at <= now()`
	}

	tag, err := p.pool.Exec(ctx, query, key, value, cfg.Metadata, ttlSeconds)
	if err != nil {
		return err
	}

	if cfg.IfAbsent && tag.RowsAffected() == 0 {
		return ErrExists
	}

	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)

	return err
}

// List returns keys in lexical order. The cursor is the last key returned.
// The first page of a listing purges expired rows.
func (p *PostgresStore) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := normalizeLimit(opts.Limit)

	if opts.Cursor == "" {
		if _, err := p.PurgeExpired(ctx); err != nil {
			return nil, err
		}
	}

	query := `
		SELECT key
		FROM kv_entries
		WHERE starts_with(key, $1)
		  AND key > $2
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY key
		LIMIT $3
	`

	rows, err := p.pool.Query(ctx, query, opts.Prefix, opts.Cursor, limit+1)
	if err != nil {
		return nil, err
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	result := &ListResult{Complete: len(keys) <= limit}
	if !result.Complete {
		keys = keys[:limit]
		result.Cursor = keys[len(keys)-1]
	}

	result.Keys = keys

	return result, nil
}

// PurgeExpired deletes every lapsed row and reports how many went.
func (p *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Compile-time check.
var _ Store = (*PostgresStore)(nil)
