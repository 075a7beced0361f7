package operator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// crash runs the operator for m until it asks to commit and stops its
// goroutine there, leaving the files as a killed process would.
func (f *fixture) crash(t *testing.T, m mutation.EngineMutation) {
	t.Helper()
	oc := f.engine.context(m)
	oc.After = func(StateUpdater) (int64, error) {
		runtime.Goexit()
		return 0, nil
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.registry[m.Kind()].Apply(context.Background(), oc)
	}()
	<-done
}

func (f *fixture) journals(t *testing.T) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(f.root, journalPrefix+"*"+journalSuffix))
	require.NoError(t, err)
	return files
}

func durable(names ...string) func(string) bool {
	return func(name string) bool { return slices.Contains(names, name) }
}

func TestJournalIsRemovedAfterCommit(t *testing.T) {
	f := setup(t, settled("books", state.WarmingUp))

	_, err := f.apply(t, mutation.NewModifyCatalogName("books", "novels", false))
	require.NoError(t, err)
	_, err = f.apply(t, mutation.NewCreateCatalog("films"))
	require.NoError(t, err)

	assert.Empty(t, f.journals(t))
}

func TestRecoverRevertsInterruptedRename(t *testing.T) {
	f := setup(t, settled("books", state.WarmingUp))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "books", "data"), []byte("1"), 0o644))

	f.crash(t, mutation.NewModifyCatalogName("books", "novels", false))
	require.Len(t, f.journals(t), 1)
	require.DirExists(t, filepath.Join(f.root, "novels"))

	require.NoError(t, Recover(f.root, durable("books"), slog.Default()))

	assert.NoDirExists(t, filepath.Join(f.root, "novels"))
	assert.FileExists(t, filepath.Join(f.root, "books", "data"))
	desc, err := ReadDescriptor(filepath.Join(f.root, "books"))
	require.NoError(t, err)
	assert.Equal(t, "books", desc.Name)
	assert.Empty(t, f.journals(t))
}

func TestRecoverRevertsInterruptedReplace(t *testing.T) {
	f := setup(t, settled("staging", state.WarmingUp), settled("live", state.Alive))
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "live", "old"), []byte("1"), 0o644))

	f.crash(t, mutation.NewModifyCatalogName("staging", "live", true))
	require.NoError(t, Recover(f.root, durable("staging", "live"), slog.Default()))

	assert.FileExists(t, filepath.Join(f.root, "live", "old"))
	live, err := ReadDescriptor(filepath.Join(f.root, "live"))
	require.NoError(t, err)
	assert.Equal(t, "live", live.Name)
	staging, err := ReadDescriptor(filepath.Join(f.root, "staging"))
	require.NoError(t, err)
	assert.Equal(t, "staging", staging.Name)

	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no parked directory or journal is left")
}

func TestRecoverRevertsInterruptedRemove(t *testing.T) {
	f := setup(t, settled("books", state.Inactive))

	f.crash(t, mutation.NewRemoveCatalog("books"))
	require.NoDirExists(t, filepath.Join(f.root, "books"))
	require.NoError(t, Recover(f.root, durable("books"), slog.Default()))

	assert.DirExists(t, filepath.Join(f.root, "books"))
	assert.Empty(t, f.journals(t))
}

func TestRecoverRemovesInterruptedCreations(t *testing.T) {
	f := setup(t, settled("books", state.WarmingUp))

	f.crash(t, mutation.NewCreateCatalog("films"))
	f.crash(t, mutation.NewDuplicateCatalog("books", "drafts"))
	require.DirExists(t, filepath.Join(f.root, "films"))
	require.DirExists(t, filepath.Join(f.root, "drafts"))

	require.NoError(t, Recover(f.root, durable("books"), slog.Default()))

	assert.NoDirExists(t, filepath.Join(f.root, "films"))
	assert.NoDirExists(t, filepath.Join(f.root, "drafts"))
	assert.DirExists(t, filepath.Join(f.root, "books"))
	assert.Empty(t, f.journals(t))
}

func TestRecoverKeepsCommittedChanges(t *testing.T) {
	f := setup(t, settled("books", state.WarmingUp))

	f.crash(t, mutation.NewModifyCatalogName("books", "novels", false))
	f.crash(t, mutation.NewCreateCatalog("films"))

	// the engine state already recorded both mutations
	require.NoError(t, Recover(f.root, durable("novels", "films"), slog.Default()))

	assert.NoDirExists(t, filepath.Join(f.root, "books"))
	desc, err := ReadDescriptor(filepath.Join(f.root, "novels"))
	require.NoError(t, err)
	assert.Equal(t, "novels", desc.Name)
	assert.DirExists(t, filepath.Join(f.root, "films"))
	assert.Empty(t, f.journals(t))
}

func TestRecoverReportsCorruptJournal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, journalPrefix+"x"+journalSuffix), []byte("moves: ["), 0o644))

	err := Recover(root, durable(), slog.Default())
	assert.ErrorContains(t, err, "failed to decode journal")
}
