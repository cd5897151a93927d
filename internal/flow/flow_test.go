package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collectAll[T any](t *testing.T, f Flow[T]) []T {
	t.Helper()
	var out []T
	err := f.Collect(context.Background(), func(v T) error {
		out = append(out, v)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestOfMapFirst(t *testing.T) {
	doubled := Map(Of(1, 2, 3), func(v int) int { return v * 2 })
	require.Equal(t, []int{2, 4, 6}, collectAll(t, doubled))

	first, err := First(context.Background(), doubled)
	require.NoError(t, err)
	require.Equal(t, 2, first)

	_, err = First(context.Background(), Of[int]())
	require.ErrorIs(t, err, ErrEmpty)
}

func TestMapErrTerminates(t *testing.T) {
	boom := errors.New("boom")
	f := MapErr(Of(1, 2, 3), func(v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})

	var got []int
	err := f.Collect(context.Background(), func(v int) error {
		got = append(got, v)
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{1}, got)

	_, err = First(context.Background(), Fail[int](boom))
	require.ErrorIs(t, err, boom)
}

func TestStateFlow_ReplaysLatest(t *testing.T) {
	s := NewStateFlow("a")
	s.Set("b")
	s.Set("c")

	v, err := First(context.Background(), Flow[string](s))
	require.NoError(t, err)
	require.Equal(t, "c", v)
	require.Equal(t, "c", s.Value())
}

func TestStateFlow_UpdateIf(t *testing.T) {
	s := NewStateFlow(1)
	require.False(t, s.UpdateIf(func(v int) (int, bool) { return v + 1, false }))
	require.Equal(t, 1, s.Value())
	require.True(t, s.UpdateIf(func(v int) (int, bool) { return v + 1, true }))
	require.Equal(t, 2, s.Value())
	require.Equal(t, 12, s.Update(func(v int) int { return v + 10 }))
}

func TestStateFlow_SubscribeSeesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStateFlow(0)
	ch := s.Subscribe(ctx)
	require.Equal(t, 0, <-ch)

	s.Set(5)
	require.Equal(t, 5, <-ch)

	cancel()
	for range ch {
	}
}

func TestStateFlow_CollectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewStateFlow(0).Collect(ctx, func(int) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, IsCancellation(err))
}

func TestCombine2_WaitsForAllSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	left := NewStateFlow(1)
	right := Of("x")
	sum := Combine2(Flow[int](left), right, func(a int, b string) string {
		return b + string(rune('0'+a))
	})

	out := make(chan string, 8)
	go func() {
		_ = sum.Collect(ctx, func(v string) error {
			out <- v
			return nil
		})
	}()

	require.Equal(t, "x1", <-out)
	left.Set(2)
	require.Equal(t, "x2", <-out)
}

func TestCombine3_CompletesWhenSourcesComplete(t *testing.T) {
	f := Combine3(Of(1), Of(2), Of(3), func(a, b, c int) int { return a + b + c })
	got := collectAll(t, f)
	require.NotEmpty(t, got)
	require.Equal(t, 6, got[len(got)-1])
}

func TestCombine_PropagatesSourceError(t *testing.T) {
	boom := errors.New("boom")
	f := Combine2(Flow[int](NewStateFlow(1)), Fail[int](boom), func(a, b int) int { return a + b })

	err := f.Collect(context.Background(), func(int) error { return nil })
	require.ErrorIs(t, err, boom)
}

func TestCombine_EmitErrorCancelsSources(t *testing.T) {
	stop := errors.New("stop")
	f := Combine2(Flow[int](NewStateFlow(1)), Flow[int](NewStateFlow(2)), func(a, b int) int { return a + b })

	err := f.Collect(context.Background(), func(int) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestScope_StateInAndClose(t *testing.T) {
	scope := NewScope(context.Background(), nil)
	src := NewStateFlow(10)
	state := StateIn(scope, "mirror", Flow[int](src), -1, nil)

	require.Eventually(t, func() bool { return state.Value() == 10 }, time.Second, 5*time.Millisecond)
	src.Set(11)
	require.Eventually(t, func() bool { return state.Value() == 11 }, time.Second, 5*time.Millisecond)

	scope.Close()
	src.Set(12)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 11, state.Value())

	var ran atomic.Bool
	started := scope.Launch("late", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.False(t, started)
	time.Sleep(10 * time.Millisecond)
	require.False(t, ran.Load())
}

func TestScope_StateInOnError(t *testing.T) {
	scope := NewScope(context.Background(), nil)
	defer scope.Close()

	state := StateIn(scope, "failing", Fail[string](errors.New("db gone")), "loading", func(err error) (string, bool) {
		return "error: " + err.Error(), true
	})
	require.Eventually(t, func() bool { return state.Value() == "error: db gone" }, time.Second, 5*time.Millisecond)
}
