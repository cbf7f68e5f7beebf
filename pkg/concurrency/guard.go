package concurrency

import (
	"context"
	"errors"
	"sync"
)

var ErrBusy = errors.New("busy, try again later")

// ConcurrencyGuard lets at most one task run at a time. Callers that arrive while
// a task is running are turned away with ErrBusy instead of waiting.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

func (g *ConcurrencyGuard) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return false
	}
	g.isBusy = true
	return true
}

func (g *ConcurrencyGuard) release() {
	g.mu.Lock()
	g.isBusy = false
	g.mu.Unlock()
}

func (g *ConcurrencyGuard) Execute(task func() error) error {
	if !g.tryAcquire() {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// ExecuteWithContext is Execute for tasks that take a context. A context that is
// already done is reported without running the task.
func (g *ConcurrencyGuard) ExecuteWithContext(ctx context.Context, task func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.Execute(func() error {
		return task(ctx)
	})
}

// Busy reports whether a task is currently running.
func (g *ConcurrencyGuard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isBusy
}
