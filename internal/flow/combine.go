package flow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type source func(ctx context.Context, emit func(any) error) error

func erase[T any](f Flow[T]) source {
	return func(ctx context.Context, emit func(any) error) error {
		return f.Collect(ctx, func(v T) error { return emit(v) })
	}
}

// Combine2 emits fn(a, b) whenever either source emits, once both have
// produced a first value.
func Combine2[A, B, R any](a Flow[A], b Flow[B], fn func(A, B) R) Flow[R] {
	return FlowFunc[R](func(ctx context.Context, emit func(R) error) error {
		return combineLatest(ctx, []source{erase(a), erase(b)}, func(v []any) error {
			return emit(fn(v[0].(A), v[1].(B)))
		})
	})
}

// Combine3 emits fn(a, b, c) whenever any source emits, once all three have
// produced a first value.
func Combine3[A, B, C, R any](a Flow[A], b Flow[B], c Flow[C], fn func(A, B, C) R) Flow[R] {
	return FlowFunc[R](func(ctx context.Context, emit func(R) error) error {
		return combineLatest(ctx, []source{erase(a), erase(b), erase(c)}, func(v []any) error {
			return emit(fn(v[0].(A), v[1].(B), v[2].(C)))
		})
	})
}

// combineLatest runs every source concurrently and calls emit with the latest
// value of each after any of them changes. It completes when all sources have
// completed and fails as soon as one source or emit fails, cancelling the rest.
func combineLatest(ctx context.Context, sources []source, emit func([]any) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type update struct {
		idx int
		val any
	}
	updates := make(chan update)

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			return src(gctx, func(v any) error {
				select {
				case updates <- update{idx: i, val: v}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
		close(updates)
	}()

	latest := make([]any, len(sources))
	seen := make([]bool, len(sources))
	missing := len(sources)
	for u := range updates {
		if !seen[u.idx] {
			seen[u.idx] = true
			missing--
		}
		latest[u.idx] = u.val
		if missing > 0 {
			continue
		}
		if err := emit(append([]any(nil), latest...)); err != nil {
			cancel()
			for range updates {
			}
			<-done
			return err
		}
	}
	return <-done
}
