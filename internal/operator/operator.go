// Package operator executes engine mutations. Each mutation kind has exactly
// one Operator; operators do the file work for a catalog and call back into
// the transaction manager to publish speculative and durable engine states.
package operator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// ApplyFunc derives the next working state. It must be a pure function of
// its inputs because it runs while the engine state lock is held.
type ApplyFunc func(version int64, prior *state.Expanded) *state.Expanded

// StateUpdater bundles a state transition with the transaction that
// requested it.
type StateUpdater struct {
	TransactionID uuid.UUID
	Mutation      mutation.EngineMutation
	apply         ApplyFunc
}

// NewStateUpdater returns an updater applying fn on behalf of the given
// transaction.
func NewStateUpdater(txID uuid.UUID, m mutation.EngineMutation, fn ApplyFunc) StateUpdater {
	return StateUpdater{TransactionID: txID, Mutation: m, apply: fn}
}

// Apply computes the next state for version.
func (u StateUpdater) Apply(version int64, prior *state.Expanded) *state.Expanded {
	return u.apply(version, prior)
}

// Context carries everything an operator needs for one transaction.
type Context struct {
	TransactionID uuid.UUID
	Mutation      mutation.EngineMutation
	Engine        mutation.View

	// Before installs a speculative, non-durable state. It may be called any
	// number of times while the operator runs.
	Before func(StateUpdater)

	// After makes the mutation durable and returns the engine version that
	// contains it. It must be called at most once, on success only.
	After func(StateUpdater) (int64, error)

	// Report forwards a completion percentage to the caller.
	Report func(percent int)

	Logger *slog.Logger
}

func (c Context) updater(fn ApplyFunc) StateUpdater {
	return NewStateUpdater(c.TransactionID, c.Mutation, fn)
}

func (c Context) report(percent int) {
	if c.Report != nil {
		c.Report(percent)
	}
}

func (c Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Operator performs the work of one mutation kind.
type Operator interface {
	// Name describes the operation for progress handles and logs.
	Name(m mutation.EngineMutation) string

	// Apply does the work and returns the resulting catalog together with the
	// engine version that made it durable.
	Apply(ctx context.Context, oc Context) (mutation.Result, error)
}

// Registry returns the operator for every engine mutation kind. The map is
// built once per call and must not be modified by the caller.
func Registry(storageDir string) map[mutation.Kind]Operator {
	fs := catalogFiles{root: storageDir}
	return map[mutation.Kind]Operator{
		mutation.KindCreateCatalog:        createOperator{fs: fs},
		mutation.KindDuplicateCatalog:     duplicateOperator{fs: fs},
		mutation.KindMakeCatalogAlive:     makeAliveOperator{},
		mutation.KindModifyCatalogName:    renameOperator{fs: fs},
		mutation.KindModifyCatalogSchema:  schemaOperator{},
		mutation.KindRemoveCatalog:        removeOperator{fs: fs},
		mutation.KindRestoreCatalog:       restoreOperator{fs: fs},
		mutation.KindSetCatalogMutability: mutabilityOperator{},
		mutation.KindSetCatalogState:      stateOperator{},
	}
}

// withCatalog returns an ApplyFunc that installs c.
func withCatalog(c state.Catalog) ApplyFunc {
	return func(_ int64, prior *state.Expanded) *state.Expanded {
		return prior.Builder().WithCatalog(c).Build()
	}
}

// commit calls After with an updater installing c and wraps the outcome.
func commit(oc Context, c state.Catalog, fn ApplyFunc) (mutation.Result, error) {
	version, err := oc.After(oc.updater(fn))
	if err != nil {
		return mutation.Result{}, err
	}
	oc.report(100)
	return mutation.Result{Catalog: c, EngineVersion: version}, nil
}

// current reads a catalog the mutation holds a conflict key for.
func current(oc Context, name string) (state.Catalog, error) {
	c, ok := oc.Engine.State().Catalog(name)
	if !ok {
		return state.Catalog{}, fmtNotFound(name)
	}
	return c, nil
}
