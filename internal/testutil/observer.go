package testutil

import (
	"fmt"
	"sync"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
)

// RecordingObserver records every change observer call as a readable event,
// e.g. "mutation transaction", "mutation createCatalog", "live 3".
type RecordingObserver struct {
	mu     sync.Mutex
	events []string
}

// ProcessMutation records the mutation kind.
func (o *RecordingObserver) ProcessMutation(m mutation.Mutation) {
	o.record("mutation " + m.Kind().String())
}

// NotifyVersionPresentInLiveView records the version.
func (o *RecordingObserver) NotifyVersionPresentInLiveView(version int64) {
	o.record(fmt.Sprintf("live %d", version))
}

// DiscardVersion records the discarded version.
func (o *RecordingObserver) DiscardVersion(version int64) {
	o.record(fmt.Sprintf("discard %d", version))
}

// Record appends an event from another participant, so one log can show
// how observer calls interleave with it.
func (o *RecordingObserver) Record(event string) {
	o.record(event)
}

// Events returns the recorded events in call order.
func (o *RecordingObserver) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func (o *RecordingObserver) record(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}
