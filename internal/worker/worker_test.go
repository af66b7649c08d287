package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_ReturnsResult(t *testing.T) {
	p := New(2, zerolog.Nop())

	got, err := Do(context.Background(), p, "ok", func(context.Context) (string, error) {
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestDo_ReturnsError(t *testing.T) {
	p := New(1, zerolog.Nop())
	boom := errors.New("boom")

	_, err := Do(context.Background(), p, "fail", func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDo_RecoversPanic(t *testing.T) {
	p := New(1, zerolog.Nop())

	_, err := Do(context.Background(), p, "panicky", func(context.Context) (int, error) {
		panic("bad")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	// The slot must have been released.
	got, err := Do(context.Background(), p, "after", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestDo_BoundsConcurrency(t *testing.T) {
	const size = 2
	p := New(size, zerolog.Nop())

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Do(context.Background(), p, "job", func(context.Context) (struct{}, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return struct{}{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(size))
}

func TestDo_ContextCancelledWhileWaiting(t *testing.T) {
	p := New(1, zerolog.Nop())
	release := make(chan struct{})
	started := make(chan struct{})

	go Do(context.Background(), p, "blocker", func(context.Context) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Do(ctx, p, "waiter", func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestNew_MinimumSize(t *testing.T) {
	assert.Equal(t, 1, New(0, zerolog.Nop()).Size())
}
