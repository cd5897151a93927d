package flow

import (
	"context"
	"sync"
)

// StateView is the read side of a StateFlow handed to consumers.
type StateView[T any] interface {
	Flow[T]
	Value() T
	Subscribe(ctx context.Context) <-chan T
}

var _ StateView[int] = (*StateFlow[int])(nil)

// StateFlow holds a single current value and broadcasts changes to collectors.
//
// New collectors receive the current value immediately. A collector that is
// slower than the writer skips intermediate values and always sees the latest
// one. Every Set notifies, even when the value is unchanged, since T need not
// be comparable. StateFlow is safe for concurrent use.
type StateFlow[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	changed chan struct{}
}

// NewStateFlow returns a StateFlow holding initial.
func NewStateFlow[T any](initial T) *StateFlow[T] {
	return &StateFlow[T]{
		value:   initial,
		version: 1,
		changed: make(chan struct{}),
	}
}

// Value returns the current value.
func (s *StateFlow[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the current value and wakes every collector.
func (s *StateFlow[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(v)
}

// Update atomically replaces the value with fn(current) and returns it.
func (s *StateFlow[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.value)
	s.setLocked(next)
	return next
}

// UpdateIf applies fn while holding the lock; when fn reports false the value
// is left untouched and collectors are not woken.
func (s *StateFlow[T]) UpdateIf(fn func(T) (T, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := fn(s.value)
	if ok {
		s.setLocked(next)
	}
	return ok
}

func (s *StateFlow[T]) setLocked(v T) {
	s.value = v
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *StateFlow[T]) snapshot() (T, uint64, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.version, s.changed
}

// Collect implements Flow. It never completes on its own; it returns when fn
// fails or ctx is cancelled.
func (s *StateFlow[T]) Collect(ctx context.Context, fn func(T) error) error {
	var seen uint64
	for {
		v, version, changed := s.snapshot()
		if version != seen {
			seen = version
			if err := fn(v); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Subscribe delivers values on a channel until ctx is cancelled, after which
// the channel is closed.
func (s *StateFlow[T]) Subscribe(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		_ = s.Collect(ctx, func(v T) error {
			select {
			case out <- v:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return out
}
