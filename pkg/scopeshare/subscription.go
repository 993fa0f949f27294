package scopeshare

import (
	"context"
	"sync"
)

// subscriber is the type-erased delivery end shared between the store and a
// Subscription. The store appends under its own lock; the consumer drains
// from Next.
type subscriber struct {
	mu      sync.Mutex
	queue   []any
	last    any
	emitted bool
	closed  bool

	// wake carries at most one pending wakeup for a blocked Next.
	wake chan struct{}

	// done closes once, on cancellation.
	done chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// deliver queues value for the consumer unless it repeats the previously
// delivered value. Reports whether the value was queued.
func (s *subscriber) deliver(value any) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if s.emitted && valuesEqual(s.last, value) {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, value)
	s.last = value
	s.emitted = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// close marks the subscriber closed and discards queued values.
// Reports whether this call performed the close.
func (s *subscriber) close() bool {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	if already {
		return false
	}
	close(s.done)
	return true
}

// Subscription is a live sequence of values for one (scope, key) slot,
// produced by Watch. It yields each write in order with consecutive
// duplicates suppressed. The sequence is infinite and not restartable;
// cancel it when the consuming node is torn down.
type Subscription[T any] struct {
	store *Store
	slot  slotKey
	sub   *subscriber
}

// Next suspends until the next emitted value. It returns ctx.Err() when the
// context is done and ErrSubscriptionClosed once the subscription has been
// cancelled; cancellation wins over values still queued at that point.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.sub.mu.Lock()
		if s.sub.closed {
			s.sub.mu.Unlock()
			return zero, ErrSubscriptionClosed
		}
		if len(s.sub.queue) > 0 {
			raw := s.sub.queue[0]
			s.sub.queue = s.sub.queue[1:]
			s.sub.mu.Unlock()
			return raw.(T), nil
		}
		s.sub.mu.Unlock()

		select {
		case <-s.sub.wake:
		case <-s.sub.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Cancel detaches the subscription from the store. Cancellation is prompt:
// no value is delivered afterwards, including values already queued. Safe to
// call more than once.
func (s *Subscription[T]) Cancel() {
	s.store.removeSubscriber(s.slot, s.sub)
}
