// Package sweep removes stale session records found while listing links.
// It has no timer: the listing handler hands it the keys it enumerated and
// the deletions happen later through eviction events.
package sweep

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/serroba/linkgate/internal/clock"
	"github.com/serroba/linkgate/internal/kv"
	"github.com/serroba/linkgate/internal/messaging"
	"github.com/serroba/linkgate/internal/session"
	"go.uber.org/zap"
)

// TopicEvictions carries scheduled key deletions.
const TopicEvictions = "kv.evictions"

// Eviction asks for a key to be deleted.
type Eviction struct {
	Key         string    `json:"key"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Scheduler publishes eviction events. It satisfies
// session.EvictionScheduler.
type Scheduler struct {
	emit  messaging.Emit[Eviction]
	clock clock.Clock
}

var _ session.EvictionScheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler that publishes through emit.
func NewScheduler(emit messaging.Emit[Eviction], c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.Real{}
	}

	return &Scheduler{emit: emit, clock: c}
}

// Schedule publishes an eviction for key. It never blocks on the deletion.
func (s *Scheduler) Schedule(ctx context.Context, key, reason string) {
	s.emit(ctx, &Eviction{Key: key, Reason: reason, RequestedAt: s.clock.Now().UTC()})
}

// Sweeper inspects enumerated keys for stale sessions.
type Sweeper struct {
	store     kv.Store
	scheduler session.EvictionScheduler
	clock     clock.Clock
	logger    *zap.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(store kv.Store, scheduler session.EvictionScheduler, c clock.Clock, logger *zap.Logger) *Sweeper {
	if c == nil {
		c = clock.Real{}
	}

	return &Sweeper{store: store, scheduler: scheduler, clock: c, logger: logger}
}

// Sweep reads every session key in keys and schedules eviction of the
// expired or unparseable ones. Other keys are ignored; transaction records
// are left to store TTL. It returns the number of evictions scheduled.
func (s *Sweeper) Sweep(ctx context.Context, keys []string) int {
	now := s.clock.Now()
	scheduled := 0

	for _, key := range keys {
		if !strings.HasPrefix(key, session.KeyPrefix) {
			continue
		}

		raw, err := s.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, kv.ErrNotFound) {
				s.logger.Warn("sweep read failed", zap.String("key", key), zap.Error(err))
			}

			continue
		}

		reason, stale := session.Stale(raw, now)
		if !stale {
			continue
		}

		s.scheduler.Schedule(ctx, key, reason)
		scheduled++
	}

	if scheduled > 0 {
		s.logger.Debug("sweep scheduled evictions", zap.Int("count", scheduled))
	}

	return scheduled
}
