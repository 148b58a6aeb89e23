package messaging

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Runnable is a component with a start/stop lifecycle.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

// ConsumerGroup starts and stops a set of consumers together.
type ConsumerGroup struct {
	consumers []Runnable
	logger    *zap.Logger
}

// NewConsumerGroup creates an empty group.
func NewConsumerGroup(logger *zap.Logger, consumers ...Runnable) *ConsumerGroup {
	return &ConsumerGroup{consumers: consumers, logger: logger}
}

// Add registers a consumer.
func (g *ConsumerGroup) Add(consumer Runnable) {
	g.consumers = append(g.consumers, consumer)
}

// Len returns the number of registered consumers.
func (g *ConsumerGroup) Len() int {
	return len(g.consumers)
}

// Start starts every consumer. If one fails, those already started are
// stopped again.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, consumer := range g.consumers {
		if err := consumer.Start(ctx); err != nil {
			for _, started := range g.consumers[:i] {
				_ = started.Shutdown()
			}

			return fmt.Errorf("start consumer %d: %w", i, err)
		}
	}

	g.logger.Info("consumers started", zap.Int("count", len(g.consumers)))

	return nil
}

// Shutdown stops every consumer and reports all failures.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("stopping consumers")

	var errs []error

	for _, consumer := range g.consumers {
		if err := consumer.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
