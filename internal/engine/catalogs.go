package engine

import (
	"context"
	"errors"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
	"github.com/FgForrest/evitaDB-sub062/internal/txn"
)

// execute applies m and waits for it to finish. When ctx ends first the
// mutation keeps running and ctx's error is returned.
func (e *Engine) execute(ctx context.Context, m mutation.EngineMutation) (mutation.Result, error) {
	p, err := e.Apply(ctx, m, nil)
	if err != nil {
		return mutation.Result{}, err
	}
	return p.Wait(ctx)
}

func (e *Engine) executeCatalog(ctx context.Context, m mutation.EngineMutation) (state.Catalog, error) {
	res, err := e.execute(ctx, m)
	if err != nil {
		return state.Catalog{}, err
	}
	return res.Catalog, nil
}

// CatalogNames returns the names of every catalog, sorted.
func (e *Engine) CatalogNames() []string {
	return e.State().CatalogNames()
}

// Catalog returns the named catalog.
func (e *Engine) Catalog(name string) (state.Catalog, bool) {
	return e.State().Catalog(mutation.NormalizeCatalogName(name))
}

// CreateCatalog creates an empty catalog in the WarmingUp state.
func (e *Engine) CreateCatalog(ctx context.Context, name string) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewCreateCatalog(name))
}

// DuplicateCatalog copies source to a new, inactive catalog named target.
func (e *Engine) DuplicateCatalog(ctx context.Context, source, target string) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewDuplicateCatalog(source, target))
}

// RenameCatalog renames name to newName, which must not exist.
func (e *Engine) RenameCatalog(ctx context.Context, name, newName string) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewModifyCatalogName(name, newName, false))
}

// ReplaceCatalog moves source over target, discarding target's contents.
func (e *Engine) ReplaceCatalog(ctx context.Context, source, target string) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewModifyCatalogName(source, target, true))
}

// DeleteCatalogIfExists removes the named catalog. It reports false when
// there was nothing to remove.
func (e *Engine) DeleteCatalogIfExists(ctx context.Context, name string) (bool, error) {
	if _, ok := e.Catalog(name); !ok {
		return false, nil
	}
	_, err := e.execute(ctx, mutation.NewRemoveCatalog(name))
	if txn.IsInvalidMutation(err) && errors.Is(err, mutation.ErrCatalogNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MakeCatalogAlive moves a WarmingUp catalog to Alive.
func (e *Engine) MakeCatalogAlive(ctx context.Context, name string) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewMakeCatalogAlive(name))
}

// UpdateCatalogSchema applies a schema change.
func (e *Engine) UpdateCatalogSchema(ctx context.Context, m mutation.ModifyCatalogSchema) (state.Catalog, error) {
	return e.executeCatalog(ctx, m)
}

// RestoreCatalog restores a catalog from a backup folder as an inactive
// catalog named name.
func (e *Engine) RestoreCatalog(ctx context.Context, name, sourceDir string) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewRestoreCatalog(name, sourceDir))
}

// SetCatalogMutability switches a catalog between read-write and read-only.
func (e *Engine) SetCatalogMutability(ctx context.Context, name string, mutable bool) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewSetCatalogMutability(name, mutable))
}

// ActivateCatalog loads an inactive catalog.
func (e *Engine) ActivateCatalog(ctx context.Context, name string) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewSetCatalogState(name, true))
}

// DeactivateCatalog unloads an active catalog without deleting it.
func (e *Engine) DeactivateCatalog(ctx context.Context, name string) (state.Catalog, error) {
	return e.executeCatalog(ctx, mutation.NewSetCatalogState(name, false))
}
