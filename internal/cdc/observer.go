// Package cdc captures committed engine mutations and publishes them to
// subscribers once the engine version that carries them is live.
package cdc

import (
	"log/slog"
	"sync"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
)

// DefaultBuffer is the subscription channel size used when Subscribe is given
// a non-positive buffer.
const DefaultBuffer = 64

// Capture is one change delivered to subscribers.
type Capture struct {
	// Version is the engine version the change belongs to.
	Version int64
	// Index is the position of the change within its version, starting at 0
	// with the transaction wrapper.
	Index     int
	Operation string
	Mutation  mutation.Mutation
}

// Observer buffers the mutations of the version being committed and
// publishes them when the version becomes visible.
//
// Thread-safety: all methods are safe for concurrent use. The transaction
// manager calls ProcessMutation and NotifyVersionPresentInLiveView while it
// holds the engine lock, so versions arrive one at a time.
type Observer struct {
	mu      sync.Mutex
	current int64
	pending map[int64][]Capture
	subs    map[*Subscription]struct{}
	closed  bool
	logger  *slog.Logger
}

// NewObserver creates an observer without subscribers.
func NewObserver(logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		pending: make(map[int64][]Capture),
		subs:    make(map[*Subscription]struct{}),
		logger:  logger,
	}
}

// ProcessMutation buffers m. A transaction wrapper starts a new version; the
// engine mutations that follow it are attached to that version.
func (o *Observer) ProcessMutation(m mutation.Mutation) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if tx, ok := m.(mutation.TransactionMutation); ok {
		o.current = tx.Version
	} else if o.current == 0 {
		o.logger.Warn("engine mutation captured outside of a transaction", "kind", m.Kind().String())
		return
	}
	captures := o.pending[o.current]
	o.pending[o.current] = append(captures, Capture{
		Version:   o.current,
		Index:     len(captures),
		Operation: m.Kind().String(),
		Mutation:  m,
	})
}

// NotifyVersionPresentInLiveView publishes the captures of version to every
// subscriber. Subscribers that cannot keep up are dropped.
func (o *Observer) NotifyVersionPresentInLiveView(version int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	captures := o.pending[version]
	delete(o.pending, version)
	if o.current == version {
		o.current = 0
	}

	for sub := range o.subs {
		for _, c := range captures {
			select {
			case sub.ch <- c:
			default:
				o.logger.Warn("dropping slow change subscriber",
					"version", version, "buffer", cap(sub.ch))
				o.removeLocked(sub)
			}
			if _, ok := o.subs[sub]; !ok {
				break
			}
		}
	}
}

// DiscardVersion drops the captures of a version that was rolled back.
func (o *Observer) DiscardVersion(version int64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n := len(o.pending[version]); n > 0 {
		o.logger.Debug("discarding captured mutations", "version", version, "count", n)
	}
	delete(o.pending, version)
	if o.current == version {
		o.current = 0
	}
}

// Subscribe registers a subscriber receiving every capture published after
// this call. buffer is the channel capacity; DefaultBuffer when not positive.
// Subscribing to a closed observer returns a subscription whose channel is
// already closed.
func (o *Observer) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Capture, buffer)
	sub := &Subscription{C: ch, ch: ch, o: o}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(ch)
		return sub
	}
	o.subs[sub] = struct{}{}
	return sub
}

// Subscribers returns the number of registered subscribers.
func (o *Observer) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// Close closes every subscription. Later subscriptions are closed at once.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	for sub := range o.subs {
		o.removeLocked(sub)
	}
}

func (o *Observer) removeLocked(sub *Subscription) {
	if _, ok := o.subs[sub]; !ok {
		return
	}
	delete(o.subs, sub)
	close(sub.ch)
}

// Subscription receives captures on C until it is cancelled or dropped, at
// which point C is closed.
type Subscription struct {
	C  <-chan Capture
	ch chan Capture
	o  *Observer
}

// Cancel unregisters the subscription and closes C. It is idempotent.
func (s *Subscription) Cancel() {
	s.o.mu.Lock()
	defer s.o.mu.Unlock()
	s.o.removeLocked(s)
}
