package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consume(l *Limiter, user string) bool {
	_, ok := l.TryConsume(user)
	return ok
}

func TestTryConsume_CeilingThenReset(t *testing.T) {
	l := New(3)
	for i, want := range []int{2, 1, 0} {
		left, ok := l.TryConsume("u")
		require.True(t, ok, "call %d", i+1)
		assert.Equal(t, want, left, "call %d", i+1)
	}
	assert.False(t, consume(l, "u"))
	assert.False(t, consume(l, "u"), "still exhausted before reset")
	assert.Equal(t, 0, l.Remaining("u"))

	l.ResetAll()
	left, ok := l.TryConsume("u")
	assert.True(t, ok)
	assert.Equal(t, 2, left)
	assert.Equal(t, 2, l.Remaining("u"))
}

func TestRemaining_UnknownUserHasCeiling(t *testing.T) {
	l := New(5)
	assert.Equal(t, 5, l.Remaining("nobody"))
	assert.Equal(t, 0, l.Users(), "Remaining must not create state")
}

func TestResetAll_FullUsersUnchanged(t *testing.T) {
	l := New(2)
	consume(l, "a")
	l.ResetAll()
	l.ResetAll()
	assert.Equal(t, 2, l.Remaining("a"))
}

func TestUsersIndependent(t *testing.T) {
	l := New(1)
	assert.True(t, consume(l, "a"))
	assert.False(t, consume(l, "a"))
	assert.True(t, consume(l, "b"))
}

func TestZeroCeiling(t *testing.T) {
	l := New(0)
	assert.False(t, consume(l, "u"))
}

func TestTryConsume_NoLostDecrements(t *testing.T) {
	const ceiling = 50
	l := New(ceiling)
	var (
		wg      sync.WaitGroup
		granted atomic.Int64
		seen    sync.Map
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if left, ok := l.TryConsume("u"); ok {
				granted.Add(1)
				_, dup := seen.LoadOrStore(left, struct{}{})
				assert.False(t, dup, "remaining %d reported twice", left)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, ceiling, granted.Load())
	assert.Equal(t, 0, l.Remaining("u"))
}

func TestResetAll_ConcurrentWithConsume(t *testing.T) {
	const ceiling = 5
	l := New(ceiling)
	var (
		wg      sync.WaitGroup
		granted atomic.Int64
		resets  atomic.Int64
		stop    = make(chan struct{})
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			l.ResetAll()
			resets.Add(1)
			r := l.Remaining("u")
			assert.True(t, r >= 0 && r <= ceiling, "remaining %d out of range", r)
		}
	}()

	var consumers sync.WaitGroup
	for i := 0; i < 8; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for j := 0; j < 500; j++ {
				left, ok := l.TryConsume("u")
				if !ok {
					continue
				}
				granted.Add(1)
				assert.True(t, left >= 0 && left < ceiling, "left %d out of range", left)
			}
		}()
	}
	consumers.Wait()
	close(stop)
	wg.Wait()

	// Each refill can pay for at most ceiling grants.
	assert.LessOrEqual(t, granted.Load(), int64(ceiling)*(resets.Load()+1))
	r := l.Remaining("u")
	assert.True(t, r >= 0 && r <= ceiling)

	l.ResetAll()
	assert.Equal(t, ceiling, l.Remaining("u"))
}

func TestRun_ResetsOnTick(t *testing.T) {
	l := New(1)
	consume(l, "u")
	require.Equal(t, 0, l.Remaining("u"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	assert.Eventually(t, func() bool { return l.Remaining("u") == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
