package txn

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/progress"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
	"github.com/FgForrest/evitaDB-sub062/internal/store"
	"github.com/FgForrest/evitaDB-sub062/internal/testutil"
)

const waitLimit = 5 * time.Second

type harness struct {
	m        *Manager
	engine   *testutil.MemoryEngine
	store    *store.Store
	observer *testutil.RecordingObserver
	exec     *testutil.GoExecutor
	gate     *testutil.GatedOperator
	dir      string
}

type harnessConfig struct {
	catalogs    []state.Catalog
	gated       bool
	executor    Executor
	persistence func(*store.Store, *testutil.RecordingObserver) PersistenceService
	opts        []Option
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := &harness{
		engine:   testutil.NewMemoryEngine(cfg.catalogs...),
		store:    s,
		observer: &testutil.RecordingObserver{},
		exec:     &testutil.GoExecutor{},
		dir:      dir,
	}
	var persistence PersistenceService = s
	if cfg.persistence != nil {
		persistence = cfg.persistence(s, h.observer)
	}
	var executor Executor = h.exec
	if cfg.executor != nil {
		executor = cfg.executor
	}
	opts := append([]Option{WithIDGenerator(testutil.NewSequentialIDs())}, cfg.opts...)
	if cfg.gated {
		h.gate = newCatalogGate()
		opts = append(opts, withOperators(h.gate.Registry()))
	}

	h.m, err = NewManager(context.Background(), h.engine, persistence, h.observer, executor, dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		// unblock gated operators still waiting for a release
		h.m.cancelRun()
		h.exec.Wait()
	})
	return h
}

// newCatalogGate returns a gated operator that installs a BeingCreated entry
// while running and commits the catalog the mutation names.
func newCatalogGate() *testutil.GatedOperator {
	gate := testutil.NewGatedOperator()
	gate.Committed = func(m mutation.EngineMutation, prior *state.Expanded) (*state.Expanded, state.Catalog) {
		b := prior.Builder()
		if r, ok := m.(mutation.ModifyCatalogName); ok {
			old, _ := prior.Catalog(r.Name)
			old.Name = r.NewName
			b.WithoutCatalog(r.Name).WithCatalog(old)
			return b.Build(), old
		}
		scoped, ok := m.(mutation.CatalogScoped)
		if !ok {
			return prior, state.Catalog{}
		}
		c := state.NewCatalog(scoped.CatalogName(), "").Settle(state.WarmingUp)
		return b.WithCatalog(c).Build(), c
	}
	return gate
}

func speculativeCreate(m mutation.EngineMutation, prior *state.Expanded) *state.Expanded {
	name := m.(mutation.CatalogScoped).CatalogName()
	return prior.Builder().WithCatalog(state.NewCatalog(name, "")).Build()
}

func (h *harness) apply(t *testing.T, m mutation.EngineMutation) *progress.Progress[mutation.Result] {
	t.Helper()
	p, err := h.m.ApplyMutation(context.Background(), m, nil)
	require.NoError(t, err)
	return p
}

// started waits until the gated operator picked up a mutation.
func (h *harness) started(t *testing.T) mutation.EngineMutation {
	t.Helper()
	select {
	case m := <-h.gate.Started:
		return m
	case <-time.After(waitLimit):
		t.Fatal("operator did not start")
		return nil
	}
}

func wait(t *testing.T, p *progress.Progress[mutation.Result]) (mutation.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitLimit)
	defer cancel()
	res, err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "progress did not finish")
	return res, err
}

func registeredKeys(m *Manager) map[mutation.ConflictKey]string {
	keys := map[mutation.ConflictKey]string{}
	m.processed.Range(func(k, v any) bool {
		keys[k.(mutation.ConflictKey)] = v.(interface{ String() string }).String()
		return true
	})
	return keys
}

func durableState(t *testing.T, s *store.Store) *state.EngineState {
	t.Helper()
	es, err := s.LoadEngineState(context.Background())
	require.NoError(t, err)
	return es
}

func settled(name string, s state.CatalogState) state.Catalog {
	return state.NewCatalog(name, "").Settle(s)
}

// flakyPersistence fails the next failStore snapshot writes.
type flakyPersistence struct {
	*store.Store
	failStore atomic.Int32
}

func (p *flakyPersistence) StoreEngineState(ctx context.Context, es state.EngineState) error {
	if p.failStore.Add(-1) >= 0 {
		return errors.New("disk full")
	}
	return p.Store.StoreEngineState(ctx, es)
}

// recordingPersistence logs WAL appends and snapshot writes into the
// observer's event log.
type recordingPersistence struct {
	*store.Store
	log *testutil.RecordingObserver
}

func (p *recordingPersistence) AppendWal(ctx context.Context, version int64, txID uuid.UUID, m mutation.EngineMutation) (mutation.TransactionMutationWithWalFileReference, error) {
	rec, err := p.Store.AppendWal(ctx, version, txID, m)
	if err == nil {
		p.log.Record(fmt.Sprintf("wal %d", version))
	}
	return rec, err
}

func (p *recordingPersistence) StoreEngineState(ctx context.Context, es state.EngineState) error {
	err := p.Store.StoreEngineState(ctx, es)
	if err == nil {
		p.log.Record(fmt.Sprintf("state %d", es.Version))
	}
	return err
}
