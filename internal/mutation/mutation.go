package mutation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// Mutation is anything the system change observer can be notified about.
type Mutation interface {
	Kind() Kind
}

// View is the part of the engine a mutation may read while verifying its
// preconditions.
type View interface {
	State() *state.Expanded
}

// EngineMutation is an immutable, top-level command that changes engine state.
//
// Implementations must not be modified after they are handed to the
// transaction manager. They need not be comparable: ModifyCatalogSchema
// carries a map and a slice, so mutations are never compared with ==.
type EngineMutation interface {
	Mutation

	// ConflictKeys lists the resources the mutation touches. Two in-flight
	// mutations must never share a key.
	ConflictKeys() []ConflictKey

	// VerifyApplicability checks preconditions against the current state. It
	// must have no side effects.
	VerifyApplicability(View) error

	// CatalogNames lists every catalog name the mutation may change.
	CatalogNames() []string
}

// CatalogScoped is implemented by engine mutations that have one primary
// catalog. Their progress can be looked up by that name while they run.
type CatalogScoped interface {
	EngineMutation
	CatalogName() string
}

// Result is what every catalog mutation produces: the catalog it created or
// changed (the removed one for removals) and the engine version that made the
// change durable.
type Result struct {
	Catalog       state.Catalog
	EngineVersion int64
}

// TransactionMutation wraps an engine mutation in the WAL. It is written ahead
// of the mutation itself and describes the transaction that committed it.
type TransactionMutation struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Version       int64     `json:"version"`
	MutationCount int       `json:"mutationCount"`
	WalSizeBytes  int64     `json:"walSizeBytes"`
	CommittedAt   time.Time `json:"committedAt"`
}

// Kind implements Mutation.
func (m TransactionMutation) Kind() Kind { return KindTransaction }

func (m TransactionMutation) String() string {
	return fmt.Sprintf("Transaction[%s, version=%d, mutations=%d, size=%dB]",
		m.TransactionID, m.Version, m.MutationCount, m.WalSizeBytes)
}

// catalogKeys builds conflict keys for a list of catalog names.
func catalogKeys(names ...string) []ConflictKey {
	keys := make([]ConflictKey, 0, len(names))
	for _, name := range names {
		keys = append(keys, CatalogConflictKey(name))
	}
	return keys
}

// existingCatalog returns the catalog or ErrCatalogNotFound.
func existingCatalog(v View, name string) (state.Catalog, error) {
	c, ok := v.State().Catalog(name)
	if !ok {
		return state.Catalog{}, fmt.Errorf("%w: %q", ErrCatalogNotFound, name)
	}
	return c, nil
}

// absentCatalog fails with ErrCatalogAlreadyExists when name is taken.
func absentCatalog(v View, name string) error {
	if _, ok := v.State().Catalog(name); ok {
		return fmt.Errorf("%w: %q", ErrCatalogAlreadyExists, name)
	}
	return nil
}
