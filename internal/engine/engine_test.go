package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FgForrest/evitaDB-sub062/internal/cdc"
	"github.com/FgForrest/evitaDB-sub062/internal/config"
	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/operator"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
	"github.com/FgForrest/evitaDB-sub062/internal/testutil"
	"github.com/FgForrest/evitaDB-sub062/internal/txn"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Directory = t.TempDir()
	cfg.Server.TransactionTimeout = config.Duration(time.Second)
	cfg.Server.ShutdownTimeout = config.Duration(5 * time.Second)
	cfg.Executor.Workers = 2
	return cfg
}

func openEngine(t *testing.T, cfg config.Config, opts ...Option) *Engine {
	t.Helper()
	e, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestOpenEmptyStorage(t *testing.T) {
	e := openEngine(t, testConfig(t))

	assert.Empty(t, e.CatalogNames())
	assert.Equal(t, int64(0), e.State().Version())
	assert.Equal(t, int64(0), e.LastStoredVersion())
	_, err := os.Stat(e.Config().DatabasePath())
	assert.NoError(t, err)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Log.Format = "xml"
	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, "log.format")
}

func TestCatalogLifecycle(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, testConfig(t))

	books, err := e.CreateCatalog(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, state.WarmingUp, books.State)

	books, err = e.MakeCatalogAlive(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, state.Alive, books.State)

	desc := "Book store"
	books, err = e.UpdateCatalogSchema(ctx, mutation.NewModifyCatalogSchema("books", &desc, map[string]string{"locale": "en"}))
	require.NoError(t, err)
	assert.Equal(t, "Book store", books.Description)
	assert.Equal(t, map[string]string{"locale": "en"}, books.Attributes)

	copied, err := e.DuplicateCatalog(ctx, "books", "books-copy")
	require.NoError(t, err)
	assert.Equal(t, state.Inactive, copied.State)
	assert.Equal(t, "Book store", copied.Description)

	archive, err := e.RenameCatalog(ctx, "books-copy", "archive")
	require.NoError(t, err)
	assert.Equal(t, "archive", archive.Name)
	assert.DirExists(t, filepath.Join(e.Config().Storage.Directory, "archive"))
	assert.NoDirExists(t, filepath.Join(e.Config().Storage.Directory, "books-copy"))

	archive, err = e.ActivateCatalog(ctx, "archive")
	require.NoError(t, err)
	assert.Equal(t, state.Alive, archive.State, "a catalog that went live reactivates as alive")

	books, err = e.SetCatalogMutability(ctx, "books", false)
	require.NoError(t, err)
	assert.False(t, books.Mutable)

	books, err = e.DeactivateCatalog(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, state.Inactive, books.State)

	assert.Equal(t, []string{"archive", "books"}, e.CatalogNames())
	es := e.State().EngineState()
	assert.Equal(t, int64(8), es.Version)
	assert.Equal(t, []string{"archive"}, es.ActiveCatalogs)
	assert.Equal(t, []string{"books"}, es.InactiveCatalogs)
	assert.Equal(t, []string{"books"}, es.ReadOnlyCatalogs)

	replaced, err := e.ReplaceCatalog(ctx, "archive", "books")
	require.NoError(t, err)
	assert.Equal(t, "books", replaced.Name)
	assert.Equal(t, state.Alive, replaced.State)
	assert.Equal(t, []string{"books"}, e.CatalogNames())

	removed, err := e.DeleteCatalogIfExists(ctx, "books")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, e.CatalogNames())
	assert.Equal(t, int64(10), e.LastStoredVersion())
}

func TestDeleteMissingCatalog(t *testing.T) {
	e := openEngine(t, testConfig(t))

	removed, err := e.DeleteCatalogIfExists(context.Background(), "nothing")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, int64(0), e.LastStoredVersion())
}

func TestInvalidMutationIsReported(t *testing.T) {
	e := openEngine(t, testConfig(t))

	_, err := e.MakeCatalogAlive(context.Background(), "books")
	require.Error(t, err)
	assert.True(t, txn.IsInvalidMutation(err))
	assert.ErrorIs(t, err, mutation.ErrCatalogNotFound)
}

func TestReopenRestoresState(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	_, err = e.CreateCatalog(ctx, "books")
	require.NoError(t, err)
	_, err = e.MakeCatalogAlive(ctx, "books")
	require.NoError(t, err)
	_, err = e.CreateCatalog(ctx, "films")
	require.NoError(t, err)
	_, err = e.SetCatalogMutability(ctx, "films", false)
	require.NoError(t, err)
	_, err = e.DuplicateCatalog(ctx, "books", "drafts")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e = openEngine(t, cfg)
	assert.Equal(t, int64(5), e.LastStoredVersion())
	assert.Equal(t, int64(5), e.State().StartVersion())
	assert.Equal(t, []string{"books", "drafts", "films"}, e.CatalogNames())

	books, _ := e.Catalog("books")
	assert.Equal(t, state.Alive, books.State)
	assert.Equal(t, state.Alive, books.Committed)
	films, _ := e.Catalog("films")
	assert.Equal(t, state.WarmingUp, films.State)
	assert.False(t, films.Mutable)
	drafts, _ := e.Catalog("drafts")
	assert.Equal(t, state.Inactive, drafts.State)

	// versions continue where the previous run stopped
	c, err := e.CreateCatalog(ctx, "music")
	require.NoError(t, err)
	assert.Equal(t, "music", c.Name)
	assert.Equal(t, int64(6), e.LastStoredVersion())
}

func TestReopenCleansStorage(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	dir := cfg.Storage.Directory

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	_, err = e.CreateCatalog(ctx, "books")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	parked := filepath.Join(dir, ".trash-old-1")
	require.NoError(t, os.Mkdir(parked, 0o755))
	orphan := filepath.Join(dir, "orphan")
	require.NoError(t, os.Mkdir(orphan, 0o755))
	require.NoError(t, operator.WriteDescriptor(orphan, state.NewCatalog("orphan", orphan)))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "scratch"), 0o755))

	e = openEngine(t, cfg)
	assert.Equal(t, []string{"books"}, e.CatalogNames())
	assert.NoDirExists(t, parked)
	assert.NoDirExists(t, orphan, "catalogs the engine state does not know are removed")
	assert.DirExists(t, filepath.Join(dir, "scratch"), "folders without a descriptor are left alone")

	_, err = e.CreateCatalog(ctx, "orphan")
	assert.NoError(t, err)
}

// crashDuring runs the operator for m until it asks to commit and stops it
// there, leaving the catalog files as a killed process would.
func crashDuring(t *testing.T, e *Engine, m mutation.EngineMutation) {
	t.Helper()
	op := operator.Registry(e.Config().Storage.Directory)[m.Kind()]
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = op.Apply(context.Background(), operator.Context{
			TransactionID: uuid.New(),
			Mutation:      m,
			Engine:        e,
			Before:        func(operator.StateUpdater) {},
			After: func(operator.StateUpdater) (int64, error) {
				runtime.Goexit()
				return 0, nil
			},
		})
	}()
	<-done
}

func TestReopenAfterInterruptedRename(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	dir := cfg.Storage.Directory

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	for _, name := range []string{"books", "staging", "live"} {
		_, err = e.CreateCatalog(ctx, name)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "live", "old"), []byte("1"), 0o644))
	crashDuring(t, e, mutation.NewModifyCatalogName("books", "novels", false))
	crashDuring(t, e, mutation.NewModifyCatalogName("staging", "live", true))
	require.NoError(t, e.Close())
	require.DirExists(t, filepath.Join(dir, "novels"))
	require.NoDirExists(t, filepath.Join(dir, "staging"))

	e = openEngine(t, cfg)
	assert.Equal(t, []string{"books", "live", "staging"}, e.CatalogNames())
	assert.NoDirExists(t, filepath.Join(dir, "novels"))
	assert.FileExists(t, filepath.Join(dir, "live", "old"))
	for _, name := range []string{"books", "staging", "live"} {
		desc, err := operator.ReadDescriptor(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, name, desc.Name)
	}

	renamed, err := e.RenameCatalog(ctx, "books", "novels")
	require.NoError(t, err)
	assert.Equal(t, "novels", renamed.Name)
}

func TestReopenAfterInterruptedCreate(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	dir := cfg.Storage.Directory

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	crashDuring(t, e, mutation.NewCreateCatalog("films"))
	require.NoError(t, e.Close())
	require.DirExists(t, filepath.Join(dir, "films"))

	e = openEngine(t, cfg)
	assert.Empty(t, e.CatalogNames())
	assert.NoDirExists(t, filepath.Join(dir, "films"))

	for range 2 {
		_, err = e.CreateCatalog(ctx, "films")
		require.NoError(t, err)
		_, err = e.DeleteCatalogIfExists(ctx, "films")
		require.NoError(t, err)
	}
}

func TestOpenFailsWhenCatalogFolderIsMissing(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	e, err := Open(ctx, cfg)
	require.NoError(t, err)
	_, err = e.CreateCatalog(ctx, "books")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.NoError(t, os.RemoveAll(filepath.Join(cfg.Storage.Directory, "books")))
	_, err = Open(ctx, cfg)
	assert.ErrorContains(t, err, "missing from")
}

func TestRestoreCatalog(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, testConfig(t))

	backup := t.TempDir()
	saved := state.NewCatalog("old-name", backup)
	saved.Description = "from backup"
	require.NoError(t, operator.WriteDescriptor(backup, saved.Settle(state.Alive)))
	require.NoError(t, os.WriteFile(filepath.Join(backup, "data.bin"), []byte("payload"), 0o644))

	restored, err := e.RestoreCatalog(ctx, "restored", backup)
	require.NoError(t, err)
	assert.Equal(t, "restored", restored.Name)
	assert.Equal(t, state.Inactive, restored.State)
	assert.Equal(t, "from backup", restored.Description)
	assert.FileExists(t, filepath.Join(e.Config().Storage.Directory, "restored", "data.bin"))

	restored, err = e.ActivateCatalog(ctx, "restored")
	require.NoError(t, err)
	assert.Equal(t, state.Alive, restored.State)
}

func TestSubscribeReceivesCommittedMutations(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, testConfig(t))
	sub := e.Subscribe(16)
	defer sub.Cancel()

	_, err := e.CreateCatalog(ctx, "books")
	require.NoError(t, err)

	var got []cdc.Capture
	for len(got) < 2 {
		select {
		case c := <-sub.C:
			got = append(got, c)
		case <-time.After(5 * time.Second):
			t.Fatal("no capture received")
		}
	}
	assert.Equal(t, "transaction", got[0].Operation)
	assert.Equal(t, mutation.NewCreateCatalog("books"), got[1].Mutation)
	assert.Equal(t, int64(1), got[1].Version)
}

func TestHistoryUsesInjectedIDsAndClock(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewDeterministicClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), time.Second)
	e := openEngine(t, testConfig(t),
		WithIDGenerator(testutil.NewSequentialIDs()),
		WithClock(clock.Now),
	)
	_, err := e.CreateCatalog(ctx, "books")
	require.NoError(t, err)
	_, err = e.CreateCatalog(ctx, "films")
	require.NoError(t, err)

	stream, err := e.ReversedCommittedMutations(ctx, nil)
	require.NoError(t, err)
	defer stream.Close()
	require.True(t, stream.Next())
	tx := stream.Mutation().(mutation.TransactionMutation)
	assert.Equal(t, testutil.TxID(2), tx.TransactionID)
	assert.Equal(t, int64(2), tx.Version)
	assert.True(t, tx.CommittedAt.After(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))

	forward, err := e.CommittedMutations(ctx, 2)
	require.NoError(t, err)
	defer forward.Close()
	var kinds []string
	for forward.Next() {
		kinds = append(kinds, forward.Mutation().Kind().String())
	}
	require.NoError(t, forward.Err())
	assert.Equal(t, []string{"transaction", "createCatalog"}, kinds)
}

func TestMetricsAreRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := openEngine(t, testConfig(t), WithRegisterer(reg))
	_, err := e.CreateCatalog(context.Background(), "books")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["engine_mutations_admitted_total"])
	assert.True(t, names["engine_state_version"])
	assert.True(t, names["engine_commit_duration_seconds"])
}

func TestCloseIsIdempotent(t *testing.T) {
	e, err := Open(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.CreateCatalog(context.Background(), "books")
	assert.ErrorIs(t, err, txn.ErrManagerClosed)
}
