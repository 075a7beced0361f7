package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

var testClock = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	s, err := Open(path, WithClock(func() time.Time { return testClock }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// txID returns a deterministic transaction id for version n.
func txID(n int64) uuid.UUID {
	var id uuid.UUID
	id[0] = 0x01
	id[6] = 0x70
	id[8] = 0x80
	id[15] = byte(n)
	return id
}

// commitVersions appends a CreateCatalog record per name and stores the
// matching engine state after each one.
func commitVersions(t *testing.T, s *Store, names ...string) []state.EngineState {
	t.Helper()
	ctx := context.Background()
	var states []state.EngineState
	var active []string
	for i, name := range names {
		version := int64(i + 1)
		rec, err := s.AppendWal(ctx, version, txID(version), mutation.NewCreateCatalog(name))
		require.NoError(t, err)
		active = append(active, name)
		es := state.EngineState{
			ProtocolVersion:  state.ProtocolVersion,
			Version:          version,
			WalReference:     &rec.WalReference,
			ActiveCatalogs:   append([]string(nil), active...),
			InactiveCatalogs: []string{},
			ReadOnlyCatalogs: []string{},
		}
		require.NoError(t, s.StoreEngineState(ctx, es))
		states = append(states, es)
	}
	return states
}

// drain reads a stream to the end.
func drain(t *testing.T, stream mutation.Stream) []mutation.Mutation {
	t.Helper()
	defer stream.Close()
	var out []mutation.Mutation
	for stream.Next() {
		out = append(out, stream.Mutation())
	}
	require.NoError(t, stream.Err())
	return out
}
