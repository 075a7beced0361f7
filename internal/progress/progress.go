// Package progress provides an asynchronous handle for long-running engine
// operations. A Progress starts pending, may report percentage updates while
// work runs, and ends exactly once in either a resolved or a failed outcome.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// State is the lifecycle phase of a Progress.
type State int

const (
	Pending State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Observer receives percentage updates (0..100). It must not block.
type Observer func(percent int)

// Handle is the type-erased view of a Progress.
type Handle interface {
	Name() string
	Percent() int
	State() State
	Done() <-chan struct{}
	Err() error
}

// Progress is a single-assignment result with progress reporting.
type Progress[T any] struct {
	name     string
	observer Observer
	logger   *slog.Logger

	// reportMu serializes observer calls so updates arrive in order.
	reportMu sync.Mutex

	mu        sync.Mutex
	percent   int
	state     State
	value     T
	err       error
	done      chan struct{}
	callbacks []func()
}

// New creates a pending Progress. observer may be nil.
func New[T any](name string, observer Observer) *Progress[T] {
	return &Progress[T]{
		name:     name,
		observer: observer,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
}

// Name describes the operation the Progress tracks.
func (p *Progress[T]) Name() string { return p.name }

// Percent returns the last reported percentage.
func (p *Progress[T]) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

// State returns the current lifecycle phase.
func (p *Progress[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed once the Progress reached a terminal outcome and its
// OnTerminal callbacks returned.
func (p *Progress[T]) Done() <-chan struct{} { return p.done }

// Err returns the failure cause, or nil while pending or when resolved.
func (p *Progress[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Report records a new percentage. Values are clamped to 0..100 and never go
// backwards; updates after the terminal outcome are ignored.
func (p *Progress[T]) Report(percent int) {
	percent = min(max(percent, 0), 100)

	p.reportMu.Lock()
	defer p.reportMu.Unlock()

	p.mu.Lock()
	if p.state != Pending || percent <= p.percent {
		p.mu.Unlock()
		return
	}
	p.percent = percent
	p.mu.Unlock()

	p.notify(percent)
}

// Complete resolves the Progress with value. It returns false when the
// Progress already had a terminal outcome.
func (p *Progress[T]) Complete(value T) bool {
	return p.finish(Resolved, value, nil)
}

// Fail resolves the Progress with err. It returns false when the Progress
// already had a terminal outcome.
func (p *Progress[T]) Fail(err error) bool {
	if err == nil {
		panic("progress: Fail called with nil error")
	}
	var zero T
	return p.finish(Failed, zero, err)
}

func (p *Progress[T]) finish(s State, value T, err error) bool {
	p.reportMu.Lock()
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		p.reportMu.Unlock()
		return false
	}
	notify := p.percent < 100
	p.state = s
	p.value = value
	p.err = err
	p.percent = 100
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()

	if notify {
		p.notify(100)
	}
	p.reportMu.Unlock()

	// Callbacks finish before waiters are released.
	for _, fn := range callbacks {
		fn()
	}
	close(p.done)
	return true
}

// OnTerminal registers fn to run once the Progress reaches its terminal
// outcome, before Done is closed. If the outcome is already known, fn runs
// immediately on the calling goroutine. fn must not Wait on the Progress.
func (p *Progress[T]) OnTerminal(fn func()) {
	p.mu.Lock()
	if p.state == Pending {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	fn()
}

// Result returns the outcome without blocking. ok is false while pending.
func (p *Progress[T]) Result() (value T, err error, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Pending {
		return value, nil, false
	}
	return p.value, p.err, true
}

// Wait blocks until the Progress has an outcome or ctx is done.
func (p *Progress[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		value, err, _ := p.Result()
		return value, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Progress[T]) notify(percent int) {
	if p.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("progress observer panicked", "operation", p.name, "panic", r)
		}
	}()
	p.observer(percent)
}

func (p *Progress[T]) String() string {
	return fmt.Sprintf("Progress[%s, %s, %d%%]", p.name, p.State(), p.Percent())
}
