// Package flow provides the small reactive toolkit the repository and view
// models are built on.
//
// A Flow is a stream of values delivered to a collector callback. Collect
// blocks until the stream completes, the callback returns an error, or the
// context is cancelled. A StateFlow is a single current-value slot that
// replays its latest value to every new collector and conflates values a slow
// collector has not seen yet. Combine2/Combine3 merge several flows into one
// derived value, and StateIn keeps a flow running in a Scope and publishes it
// into a StateFlow.
package flow

import (
	"context"
	"errors"
)

// Flow is a stream of values of type T.
type Flow[T any] interface {
	// Collect calls fn for every value until the stream ends. It returns nil
	// when the stream completes, the first error from fn or the stream, or
	// ctx.Err() when cancelled.
	Collect(ctx context.Context, fn func(T) error) error
}

// FlowFunc adapts a function into a Flow.
type FlowFunc[T any] func(ctx context.Context, emit func(T) error) error

// Collect implements Flow.
func (f FlowFunc[T]) Collect(ctx context.Context, fn func(T) error) error {
	return f(ctx, fn)
}

var errStop = errors.New("flow: stop collecting")

// Of returns a finite flow emitting values in order.
func Of[T any](values ...T) Flow[T] {
	return FlowFunc[T](func(ctx context.Context, emit func(T) error) error {
		for _, v := range values {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Fail returns a flow that terminates immediately with err.
func Fail[T any](err error) Flow[T] {
	return FlowFunc[T](func(context.Context, func(T) error) error {
		return err
	})
}

// Map transforms every value of src with fn.
func Map[T, R any](src Flow[T], fn func(T) R) Flow[R] {
	return FlowFunc[R](func(ctx context.Context, emit func(R) error) error {
		return src.Collect(ctx, func(v T) error {
			return emit(fn(v))
		})
	})
}

// MapErr transforms every value of src with fn; an error from fn terminates the flow.
func MapErr[T, R any](src Flow[T], fn func(T) (R, error)) Flow[R] {
	return FlowFunc[R](func(ctx context.Context, emit func(R) error) error {
		return src.Collect(ctx, func(v T) error {
			r, err := fn(v)
			if err != nil {
				return err
			}
			return emit(r)
		})
	})
}

// First returns the first value of src and stops collecting.
func First[T any](ctx context.Context, src Flow[T]) (T, error) {
	var (
		first T
		found bool
	)
	err := src.Collect(ctx, func(v T) error {
		first, found = v, true
		return errStop
	})
	if found {
		return first, nil
	}
	if err == nil {
		err = ErrEmpty
	}
	return first, err
}

// ErrEmpty is returned by First when the flow completes without a value.
var ErrEmpty = errors.New("flow: completed without a value")

// IsCancellation reports whether err only says the collector went away.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
