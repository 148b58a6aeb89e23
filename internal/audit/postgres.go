package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS link_events (
	id          BIGSERIAL PRIMARY KEY,
	action      TEXT NOT NULL,
	code        TEXT NOT NULL,
	url         TEXT NOT NULL DEFAULT '',
	at          TIMESTAMPTZ NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	client_ip   TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	referrer    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS link_events_code_at ON link_events (code, at);
`

// PostgresSink appends events to the link_events table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

var _ Sink = (*PostgresSink)(nil)

// NewPostgresSink creates a sink over pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// EnsureSchema creates the events table if needed.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}

	return nil
}

func (s *PostgresSink) Record(ctx context.Context, e *LinkEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO link_events (action, code, url, at, actor, client_ip, user_agent, referrer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(e.Action), e.Code, e.URL, e.At, e.Actor, e.ClientIP, e.UserAgent, e.Referrer,
	)
	if err != nil {
		return fmt.Errorf("insert link event: %w", err)
	}

	return nil
}
