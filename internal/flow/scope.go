package flow

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Scope owns the goroutines started on behalf of one view model. Closing the
// scope cancels them and waits for them to return.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logrus.FieldLogger

	mu sync.Mutex // orders Launch against Close
	wg sync.WaitGroup
}

// NewScope derives a cancellable scope from parent. Errors returned by
// launched functions are logged to log unless they are cancellations.
func NewScope(parent context.Context, log logrus.FieldLogger) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel, log: log}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Launch runs fn in a new goroutine bound to the scope and reports whether
// it started. Launching on a closed scope is a no-op that returns false.
func (s *Scope) Launch(name string, fn func(ctx context.Context) error) bool {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		if err := fn(s.ctx); err != nil && !IsCancellation(err) && s.log != nil {
			s.log.WithError(err).WithField("job", name).Error("job failed")
		}
	}()
	return true
}

// Close cancels the scope and waits for its goroutines.
func (s *Scope) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

// StateIn collects src inside scope and publishes each value into a new
// StateFlow that starts at initial. onErr, when non-nil, maps a terminal
// stream error to a final published value.
func StateIn[T any](scope *Scope, name string, src Flow[T], initial T, onErr func(error) (T, bool)) *StateFlow[T] {
	state := NewStateFlow(initial)
	scope.Launch(name, func(ctx context.Context) error {
		err := src.Collect(ctx, func(v T) error {
			state.Set(v)
			return nil
		})
		if err != nil && !IsCancellation(err) && onErr != nil {
			if v, ok := onErr(err); ok {
				state.Set(v)
			}
		}
		return err
	})
	return state
}
