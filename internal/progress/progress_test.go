package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressResolves(t *testing.T) {
	var seen []int
	p := New[string]("create", func(percent int) { seen = append(seen, percent) })

	p.Report(10)
	p.Report(5)
	p.Report(150)
	assert.Equal(t, 100, p.Percent())

	require.True(t, p.Complete("ok"))
	assert.False(t, p.Complete("again"))
	assert.False(t, p.Fail(errors.New("late")))

	value, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, Resolved, p.State())
	assert.Equal(t, []int{10, 100}, seen)
}

func TestProgressFails(t *testing.T) {
	var seen []int
	p := New[int]("remove", func(percent int) { seen = append(seen, percent) })
	boom := errors.New("boom")

	require.True(t, p.Fail(boom))
	p.Report(50)

	_, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, p.Err(), boom)
	assert.Equal(t, Failed, p.State())
	assert.Equal(t, []int{100}, seen, "terminal outcome reports completion")
}

func TestProgressResultWhilePending(t *testing.T) {
	p := New[int]("x", nil)
	_, _, ok := p.Result()
	assert.False(t, ok)

	select {
	case <-p.Done():
		t.Fatal("pending progress must not be done")
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOnTerminalRunsOnce(t *testing.T) {
	p := New[int]("x", nil)
	calls := 0
	p.OnTerminal(func() { calls++ })

	p.Complete(1)
	p.Fail(errors.New("ignored"))
	assert.Equal(t, 1, calls)

	late := false
	p.OnTerminal(func() { late = true })
	assert.True(t, late, "callback registered after completion runs immediately")
}

func TestObserverPanicIsContained(t *testing.T) {
	p := New[int]("x", func(int) { panic("observer bug") })
	assert.NotPanics(t, func() { p.Report(20) })
	assert.True(t, p.Complete(1))
}

func TestConcurrentTerminalTransitions(t *testing.T) {
	p := New[int]("x", nil)
	var wg sync.WaitGroup
	wins := make(chan int, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 && p.Complete(i) {
				wins <- i
			}
			if i%2 == 1 && p.Fail(errors.New("x")) {
				wins <- i
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestHandleView(t *testing.T) {
	var h Handle = New[string]("named", nil)
	assert.Equal(t, "named", h.Name())
	assert.Equal(t, Pending, h.State())
	assert.Nil(t, h.Err())
}

func TestCallbacksRunBeforeDone(t *testing.T) {
	p := New[int]("x", nil)
	released := false
	p.OnTerminal(func() {
		select {
		case <-p.Done():
			t.Error("done closed before callback finished")
		default:
		}
		released = true
	})

	p.Complete(1)
	<-p.Done()
	assert.True(t, released)
}
