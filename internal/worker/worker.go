// Package worker runs blocking jobs, such as document extraction, on a
// bounded pool while the caller waits for the result.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Pool limits how many jobs run at once.
type Pool struct {
	sem  *semaphore.Weighted
	size int
	log  zerolog.Logger
}

// New creates a pool that runs at most size jobs concurrently.
func New(size int, log zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
		log:  log.With().Str("component", "worker").Logger(),
	}
}

// Size returns the pool capacity.
func (p *Pool) Size() int { return p.size }

type result[T any] struct {
	val T
	err error
}

// Do runs fn on the pool and waits for its result. It returns ctx.Err()
// if ctx is done before a slot frees up or before fn returns; in the
// latter case fn keeps its slot until it observes the cancellation.
// A panic in fn is returned as an error.
func Do[T any](ctx context.Context, p *Pool, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				p.log.Error().Str("job", name).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("job panicked")
				done <- result[T]{err: fmt.Errorf("%s: panic: %v", name, r)}
			}
		}()

		val, err := fn(ctx)
		ev := p.log.Debug()
		if err != nil {
			ev = p.log.Warn().Err(err)
		}
		ev.Str("job", name).Dur("duration", time.Since(start)).Msg("job finished")
		done <- result[T]{val: val, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
