package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/operator"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// admittedCatalog is a catalog entry as it was live at admission time.
type admittedCatalog struct {
	catalog state.Catalog
	present bool
}

// finalizer is the per-transaction cleanup guard.
type finalizer struct {
	m        *Manager
	txID     uuid.UUID
	mutation mutation.EngineMutation
	keys     []mutation.ConflictKey

	// admitted holds the catalog entries the mutation may change, as they
	// were when it was admitted. The conflict keys keep them stable.
	admitted map[string]admittedCatalog

	once       sync.Once
	speculated atomic.Bool
	afterUsed  atomic.Bool
	committed  atomic.Bool
}

func newFinalizer(m *Manager, txID uuid.UUID, em mutation.EngineMutation) *finalizer {
	current := m.engine.State()
	admitted := make(map[string]admittedCatalog)
	for _, name := range em.CatalogNames() {
		c, ok := current.Catalog(name)
		admitted[name] = admittedCatalog{catalog: c, present: ok}
	}
	return &finalizer{m: m, txID: txID, mutation: em, admitted: admitted}
}

// finalize releases the conflict keys registered by this transaction. It
// runs at most once.
func (f *finalizer) finalize() {
	f.once.Do(func() {
		for _, key := range f.keys {
			f.m.processed.CompareAndDelete(key, f.txID)
		}
		f.m.inFlight.Done()
	})
}

// before is the pre-mutation update handed to the operator.
func (f *finalizer) before(u operator.StateUpdater) {
	f.speculated.Store(true)
	f.m.updateBefore(u)
}

// after is the post-mutation update handed to the operator.
func (f *finalizer) after(u operator.StateUpdater) (int64, error) {
	if f.afterUsed.Swap(true) {
		return 0, errors.New("post-mutation update called more than once")
	}
	version, err := f.m.updateAfter(u)
	if err != nil {
		return 0, err
	}
	f.committed.Store(true)
	return version, nil
}

// acquire takes the engine state lock without a deadline. Updates run on
// behalf of already admitted transactions and must not be refused.
func (m *Manager) acquire() {
	if err := m.lock.Acquire(context.Background(), 1); err != nil {
		panic(fmt.Sprintf("engine state lock: %v", err))
	}
}

// updateBefore installs a speculative, non-durable state.
func (m *Manager) updateBefore(u operator.StateUpdater) {
	m.acquire()
	defer m.lock.Release(1)

	next := u.Apply(m.lastStoredVersion.Load()+1, m.engine.State())
	m.engine.SetNextState(next)
}

// updateAfter makes the mutation durable and installs its state.
func (m *Manager) updateAfter(u operator.StateUpdater) (int64, error) {
	m.acquire()
	defer m.lock.Release(1)
	defer m.metrics.CommitTimer()()

	ctx := m.runCtx
	version := m.lastStoredVersion.Load() + 1

	rec, err := m.persistence.AppendWal(ctx, version, u.TransactionID, u.Mutation)
	if err != nil {
		m.logger.Error("failed to append engine mutation to WAL",
			"transaction", u.TransactionID, "version", version, "error", err)
		return 0, fmt.Errorf("failed to append engine mutation to WAL: %w", err)
	}

	m.observer.ProcessMutation(rec.TransactionMutation)
	m.observer.ProcessMutation(u.Mutation)

	next := u.Apply(version, m.engine.State())
	snapshot := next.Snapshot(rec.WalReference, version)
	if err := m.persistence.StoreEngineState(ctx, snapshot); err != nil {
		m.logger.Error("failed to store engine state",
			"transaction", u.TransactionID, "version", version, "error", err)
		m.rollbackWal(ctx, version)
		return 0, fmt.Errorf("failed to store engine state %d: %w", version, err)
	}

	m.lastStoredVersion.Store(version)
	m.lastWalReference = rec.WalReference
	m.engine.SetNextState(next.WithEngineState(snapshot))
	m.observer.NotifyVersionPresentInLiveView(version)
	m.metrics.SetVersion(version)

	m.logger.Info("engine mutation committed",
		"transaction", u.TransactionID,
		"kind", u.Mutation.Kind().String(),
		"version", version,
	)
	return version, nil
}

// rollbackWal drops the WAL record of a version whose snapshot could not be
// stored, so the version can be committed again. Called with the lock held.
func (m *Manager) rollbackWal(ctx context.Context, version int64) {
	if _, err := m.persistence.TruncateWal(ctx, m.lastWalReference); err != nil {
		m.logger.Error("failed to truncate WAL after failed commit",
			"version", version, "error", err)
	}
	if d, ok := m.observer.(versionDiscarder); ok {
		d.DiscardVersion(version)
	}
}

// compensate restores the catalog entries a failed mutation may have
// replaced with speculative ones.
func (m *Manager) compensate(f *finalizer) {
	m.acquire()
	defer m.lock.Release(1)

	b := m.engine.State().Builder()
	for name, entry := range f.admitted {
		if entry.present {
			b.WithCatalog(entry.catalog)
		} else {
			b.WithoutCatalog(name)
		}
	}
	m.engine.SetNextState(b.Build())
}
