package messaging_test

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

type mockSubscriber struct {
	mu      sync.Mutex
	msgs    chan *message.Message
	err     error
	topics  []string
	stopped bool
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{msgs: make(chan *message.Message, 10)}
}

func (m *mockSubscriber) Subscribe(_ context.Context, topic string) (<-chan *message.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	m.topics = append(m.topics, topic)

	return m.msgs, nil
}

func (m *mockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stopped {
		m.stopped = true
		close(m.msgs)
	}

	return nil
}

type mockPublisher struct {
	mu       sync.Mutex
	topic    string
	messages []*message.Message
	err      error
}

func (m *mockPublisher) Publish(topic string, msgs ...*message.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.topic = topic
	m.messages = append(m.messages, msgs...)

	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}
