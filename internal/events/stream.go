// Package events provides a minimal synchronous publish/subscribe primitive.
// Delivery is in-order and completes for every current subscriber before
// Publish returns, which is what the evaluation pipeline relies on: an ingest
// batch is fully applied downstream before the publishing tick continues.
package events

import "sync"

// Stream is a concurrency-safe fan-out of values of type T.
type Stream[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
	order  []int
}

// NewStream creates an empty stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn for every subsequent Publish. The returned cancel
// function removes the subscription; it is safe to call more than once.
func (s *Stream[T]) Subscribe(fn func(T)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; !ok {
			return
		}
		delete(s.subs, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers v to every subscriber in subscription order. Handlers run
// on the caller's goroutine.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	handlers := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		handlers = append(handlers, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(v)
	}
}
