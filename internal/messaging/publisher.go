package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Publish sends a typed event.
type Publish[T any] func(ctx context.Context, event *T) error

// NewPublishFunc creates a typed publish function for topic.
func NewPublishFunc[T any](publisher message.Publisher, topic string) Publish[T] {
	return func(ctx context.Context, event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", topic, err)
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)

		if err := publisher.Publish(topic, msg); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}

		return nil
	}
}

// Emit sends a typed event without reporting failure to the caller.
type Emit[T any] func(ctx context.Context, event *T)

// FireAndForget turns publish into an Emit that logs failures.
func FireAndForget[T any](publish Publish[T], logger *zap.Logger) Emit[T] {
	return func(ctx context.Context, event *T) {
		if err := publish(context.WithoutCancel(ctx), event); err != nil {
			logger.Warn("failed to publish event", zap.Error(err))
		}
	}
}
