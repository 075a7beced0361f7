package executor

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p, err := New(8, nil)
	require.NoError(t, err)
	defer p.Release(time.Second)
	assert.Equal(t, 8, p.Cap())

	var ran atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(8), ran.Load())
}

func TestPoolDefaultsToCPUCount(t *testing.T) {
	p, err := New(0, nil)
	require.NoError(t, err)
	defer p.Release(time.Second)
	assert.Positive(t, p.Cap())
}

func TestPoolLogsPanics(t *testing.T) {
	var buf syncBuffer
	p, err := New(2, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)
	defer p.Release(time.Second)

	require.NoError(t, p.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }), "the pool survives a panicking task")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task after panic did not run")
	}
	assert.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("task panicked"))
	}, 5*time.Second, time.Millisecond)
}

func TestSubmitAfterRelease(t *testing.T) {
	p, err := New(2, nil)
	require.NoError(t, err)
	require.NoError(t, p.Release(time.Second))

	assert.ErrorIs(t, p.Submit(func() {}), ErrClosed)
}

func TestRunningCountsBusyWorkers(t *testing.T) {
	p, err := New(2, nil)
	require.NoError(t, err)
	defer p.Release(time.Second)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	for range 2 {
		require.NoError(t, p.Submit(func() {
			started <- struct{}{}
			<-release
		}))
	}
	<-started
	<-started
	assert.Equal(t, 2, p.Running())
	close(release)
}

func TestSubmitFailsFastWhenBusy(t *testing.T) {
	p, err := New(1, nil)
	require.NoError(t, err)
	defer p.Release(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	returned := make(chan error, 1)
	go func() { returned <- p.Submit(func() {}) }()
	select {
	case err := <-returned:
		assert.ErrorIs(t, err, ErrOverloaded)
	case <-time.After(time.Second):
		t.Fatal("Submit waited for a busy worker")
	}
	close(release)
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
