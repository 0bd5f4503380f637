// Package goroutine bounds and drains the background work the service
// spawns, such as OTP delivery publishes and notification fan-out.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/financeapp/otpgate/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is the per-CPU multiplier applied when NewManager
// receives a non-positive limit.
const DefaultMaxGoroutine int = 100

// Manager runs tasks on goroutines behind a semaphore. Errors returned by
// tasks are collected and surfaced by Wait, which also stops admission of
// new work.
type Manager struct {
	mu      sync.Mutex
	errs    []error
	wg      *sync.WaitGroup
	sema    chan struct{}
	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a Manager admitting at most maxGoroutine concurrent
// tasks.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{
		wg:   &sync.WaitGroup{},
		sema: make(chan struct{}, maxGoroutine),
	}
}

// Go runs f on a goroutine when a slot is free. When the manager is at
// capacity or already draining, f is dropped with a warning rather than
// queued.
func (g *Manager) Go(pCtx context.Context, f func(ctx context.Context) error) {
	if g == nil {
		return
	}

	g.stateMu.RLock()
	if g.closed {
		g.stateMu.RUnlock()
		slog.WarnContext(pCtx, "goroutine manager is closed, skipping new goroutine")
		return
	}

	select {
	case g.sema <- struct{}{}:
		g.wg.Go(func() {
			g.stateMu.RUnlock()
			defer g.release(pCtx)
			g.run(pCtx, f)
		})
	default:
		g.stateMu.RUnlock()
		slog.WarnContext(pCtx, "Maximum goroutine limit reached, failed to start new goroutine")
	}
}

func (g *Manager) run(ctx context.Context, f func(ctx context.Context) error) {
	select {
	case <-ctx.Done():
		slog.WarnContext(ctx, "goroutine canceled", "because", ctx.Err())
	default:
		if err := f(ctx); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}
}

func (g *Manager) release(ctx context.Context) {
	<-g.sema

	if rvr := recover(); rvr != nil {
		stack := debug.Stack()
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			slog.ErrorContext(ctx, "panic occurred in goroutine", "stack", paths)
		} else {
			slog.ErrorContext(ctx, "panic occurred in goroutine", "stack", string(stack))
		}
	}
}

// Wait closes the manager to new work, blocks for in-flight tasks, and
// returns their joined errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	return errors.Join(g.errs...)
}
