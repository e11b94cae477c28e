package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"cyber-monitor/backend/internal/event/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// DefaultTaskTimeout bounds a background task started with Runner.Go.
const DefaultTaskTimeout = 30 * time.Second

// Runner starts best-effort background tasks detached from request contexts and tracks them for shutdown.
type Runner struct {
	log     zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// NewRunner returns a Runner whose tasks each get timeout (DefaultTaskTimeout when <= 0).
func NewRunner(log zerolog.Logger, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Runner{log: log, timeout: timeout}
}

// Go runs fn once in a goroutine with context.Background() and the runner timeout, so request
// cancellation does not abort it. A returned error is logged and dropped. After Drain has been
// called Go runs nothing and reports false.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) bool {
	if r == nil || fn == nil || r.closed.Load() {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				r.log.Error().Str("task", name).Interface("panic", p).Msg("background task panicked")
			}
		}()
		if err := fn(ctx); err != nil {
			r.log.Warn().Err(err).Str("task", name).Msg("background task failed")
		}
	}()
	return true
}

// Drain stops accepting tasks and waits for running ones until ctx is done.
func (r *Runner) Drain(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.closed.Store(true)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmitAsync publishes event on r without blocking the caller.
// emitter and event may be nil; EmitAsync returns immediately without starting a goroutine.
func EmitAsync(r *Runner, emitter EventEmitter, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	snapshot := event.Clone()
	r.Go("emit", func(ctx context.Context) error {
		emitCtx, cancel := context.WithTimeout(ctx, emitTimeout)
		defer cancel()
		return emitter.Emit(emitCtx, snapshot)
	})
}
