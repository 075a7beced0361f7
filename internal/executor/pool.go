// Package executor provides the worker pool engine mutation operators run on.
package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
)

var (
	// ErrClosed is returned by Submit after Release.
	ErrClosed = ants.ErrPoolClosed
	// ErrOverloaded is returned by Submit while every worker is busy.
	ErrOverloaded = ants.ErrPoolOverload
)

// Pool is a bounded goroutine pool. Submit never waits for a free worker.
//
// Thread-safety: Pool is safe for concurrent use.
type Pool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// New creates a pool of workers goroutines; runtime.NumCPU() when workers is
// not positive. Panics in tasks are recovered and logged.
func New(workers int, logger *slog.Logger) (*Pool, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{logger: logger}
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(p.recovered),
		ants.WithLogger(antsLogger{logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Submit schedules task. It returns ErrOverloaded when no worker is free and
// ErrClosed once the pool is released.
func (p *Pool) Submit(task func()) error {
	if err := p.pool.Submit(task); err != nil {
		switch {
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrClosed
		case errors.Is(err, ants.ErrPoolOverload):
			return ErrOverloaded
		}
		return fmt.Errorf("failed to submit task: %w", err)
	}
	return nil
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Cap returns the number of workers.
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Release stops accepting tasks and waits up to timeout for running ones.
func (p *Pool) Release(timeout time.Duration) error {
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("failed to release worker pool: %w", err)
	}
	return nil
}

func (p *Pool) recovered(r any) {
	p.logger.Error("task panicked", "panic", r)
}

// antsLogger routes ants' internal messages to slog.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "executor")
}
