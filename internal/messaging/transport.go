package messaging

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// Backend selects the event transport.
type Backend string

const (
	// BackendMemory delivers events in-process. Events published while no
	// consumer is subscribed are dropped.
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis streams, so consumers may run in another process.
	BackendRedis Backend = "redis"
)

// Transport pairs the publisher and subscriber of one backend.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	closers    []func() error
}

// NewMemoryTransport creates an in-process transport.
func NewMemoryTransport(logger watermill.LoggerAdapter) *Transport {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)

	return &Transport{
		Publisher:  ch,
		Subscriber: ch,
		closers:    []func() error{ch.Close},
	}
}

// NewRedisTransport creates a Redis streams transport. Subscribers join
// consumerGroup so each event is handled once across processes.
func NewRedisTransport(client redis.UniversalClient, consumerGroup string, logger watermill.LoggerAdapter) (*Transport, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, logger)
	if err != nil {
		return nil, fmt.Errorf("redis stream publisher: %w", err)
	}

	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: consumerGroup,
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, fmt.Errorf("redis stream subscriber: %w", err)
	}

	return &Transport{
		Publisher:  pub,
		Subscriber: sub,
		closers:    []func() error{pub.Close, sub.Close},
	}, nil
}

// Shutdown closes the backend.
func (t *Transport) Shutdown() error {
	var errs []error

	for _, closeFn := range t.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
