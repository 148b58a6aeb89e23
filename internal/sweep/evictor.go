package sweep

import (
	"context"

	"github.com/serroba/linkgate/internal/kv"
	"go.uber.org/zap"
)

// Evictor deletes keys named by eviction events.
type Evictor struct {
	store  kv.Store
	logger *zap.Logger
}

// NewEvictor creates an evictor over store.
func NewEvictor(store kv.Store, logger *zap.Logger) *Evictor {
	return &Evictor{store: store, logger: logger}
}

// Handle deletes the key. Deleting a missing key succeeds. A store failure
// is logged and the event acknowledged: redelivering against a failing store
// only spins, and the record's TTL removes it anyway.
func (e *Evictor) Handle(ctx context.Context, ev *Eviction) error {
	if err := e.store.Delete(ctx, ev.Key); err != nil {
		e.logger.Warn("eviction dropped",
			zap.String("key", ev.Key),
			zap.String("reason", ev.Reason),
			zap.Error(err),
		)

		return nil
	}

	e.logger.Debug("evicted key", zap.String("key", ev.Key), zap.String("reason", ev.Reason))

	return nil
}
