package submission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message is one queued envelope.
type Message struct {
	ID   string
	Body string
}

// MemoryQueue is a Queue backed by a buffered channel.
type MemoryQueue struct {
	ch chan Message
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{ch: make(chan Message, buffer)}
}

// Send enqueues body or blocks until ctx is done.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	select {
	case q.ch <- Message{ID: uuid.NewString(), Body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a message is available or ctx is done.
func (q *MemoryQueue) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Len returns the number of buffered messages.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// WaitEmpty blocks until every buffered message has been received or ctx is
// done.
func (q *MemoryQueue) WaitEmpty(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for len(q.ch) > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
