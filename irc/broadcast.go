package irc

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned by Subscription.Recv once the connection has
	// stopped publishing and every retained message was received.
	ErrClosed = errors.New("event stream closed")

	// ErrLagged matches a *LaggedError with errors.Is.
	ErrLagged = errors.New("subscriber lagged behind")
)

// A LaggedError is returned by Subscription.Recv when the subscriber fell
// more than the buffer capacity behind the publisher. Missed messages are gone;
// the next Recv returns the oldest message still retained.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged behind: %d messages dropped", e.Missed)
}

// Is makes errors.Is(err, ErrLagged) true for any *LaggedError.
func (e *LaggedError) Is(target error) bool {
	return target == ErrLagged
}

// broadcast is a bounded single-writer, many-reader ring of messages.
// Every published message gets the next sequence number; each Subscription
// keeps its own cursor so slow readers never block the writer or each other.
type broadcast struct {
	mu     sync.Mutex
	ring   []*Message
	next   uint64        // sequence number of the next message to publish
	wake   chan struct{} // closed and replaced on every publish and on close
	closed bool
}

func newBroadcast(capacity int) *broadcast {
	if capacity < 1 {
		capacity = 1
	}
	return &broadcast{
		ring: make([]*Message, capacity),
		wake: make(chan struct{}),
	}
}

// publish stores m and wakes every waiting subscriber.
// Publishing after close is a no-op.
func (b *broadcast) publish(m *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.ring[b.next%uint64(len(b.ring))] = m
	b.next++
	close(b.wake)
	b.wake = make(chan struct{})
}

// close ends the stream. Subscribers still receive retained messages they have not read yet.
func (b *broadcast) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.wake)
}

// subscribe returns a subscription whose cursor starts at the next published message.
func (b *broadcast) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscription{b: b, cursor: b.next}
}

// oldest returns the sequence number of the oldest retained message. b.mu must be held.
func (b *broadcast) oldest() uint64 {
	if capacity := uint64(len(b.ring)); b.next > capacity {
		return b.next - capacity
	}
	return 0
}

// A Subscription is an independent read cursor over a connection's message stream.
// Messages are delivered in the order they were read from the wire.
//
// A Subscription must not be used by more than one goroutine at a time.
type Subscription struct {
	b      *broadcast
	cursor uint64
}

// Recv returns the next message. It blocks until a message is published,
// ctx is done, or the stream is closed and drained (ErrClosed).
//
// If the subscriber fell behind by more than the buffer capacity, Recv returns
// a *LaggedError and moves the cursor to the oldest retained message.
func (s *Subscription) Recv(ctx context.Context) (*Message, error) {
	for {
		s.b.mu.Lock()
		if oldest := s.b.oldest(); s.cursor < oldest {
			missed := oldest - s.cursor
			s.cursor = oldest
			s.b.mu.Unlock()
			return nil, &LaggedError{Missed: missed}
		}
		if s.cursor < s.b.next {
			m := s.b.ring[s.cursor%uint64(len(s.b.ring))]
			s.cursor++
			s.b.mu.Unlock()
			return m, nil
		}
		if s.b.closed {
			s.b.mu.Unlock()
			return nil, ErrClosed
		}
		wake := s.b.wake
		s.b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
