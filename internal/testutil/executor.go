package testutil

import (
	"errors"
	"sync"
)

// GoExecutor runs every task on a new goroutine.
type GoExecutor struct {
	wg sync.WaitGroup
}

// Submit starts task.
func (e *GoExecutor) Submit(task func()) error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		task()
	}()
	return nil
}

// Wait blocks until every submitted task returned.
func (e *GoExecutor) Wait() {
	e.wg.Wait()
}

// ErrExecutorFull is returned by RejectingExecutor.
var ErrExecutorFull = errors.New("executor is full")

// RejectingExecutor refuses every task.
type RejectingExecutor struct{}

// Submit always fails with ErrExecutorFull.
func (RejectingExecutor) Submit(func()) error {
	return ErrExecutorFull
}
