// Package mqtest provides an in-memory mq.Backend that records published
// messages.
package mqtest

import (
	"context"
	"strconv"
	"sync"

	"github.com/jobtracker/apiserver/internal/mq"
)

// Backend keeps every published message per channel. Subscribe replays the
// channel's messages in order and then blocks until ctx is done.
type Backend struct {
	// PublishErr, when set, is returned by every Publish.
	PublishErr error

	mu       sync.Mutex
	messages map[string][]mq.Message
	nextID   int
	closed   bool
}

func New() *Backend {
	return &Backend{messages: make(map[string][]mq.Message)}
}

func (b *Backend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PublishErr != nil {
		return "", b.PublishErr
	}
	b.nextID++
	id := strconv.Itoa(b.nextID)
	b.messages[channel] = append(b.messages[channel], mq.Message{
		ID:         id,
		Data:       append([]byte(nil), data...),
		Attributes: attrs,
	})
	return id, nil
}

func (b *Backend) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	for _, msg := range b.Messages(channel) {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Messages returns a copy of what was published on channel.
func (b *Backend) Messages(channel string) []mq.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]mq.Message(nil), b.messages[channel]...)
}

func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
