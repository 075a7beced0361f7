package operator

import (
	"context"
	"fmt"
	"os"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// rewrite replaces the descriptor of c with updated and commits updated.
func rewrite(ctx context.Context, oc Context, c, updated state.Catalog) (mutation.Result, error) {
	return withUndo(oc, func(u *undoLog) (mutation.Result, error) {
		if err := WriteDescriptor(c.Directory, updated); err != nil {
			return mutation.Result{}, err
		}
		u.push(func() error { return WriteDescriptor(c.Directory, c) })
		if err := ctx.Err(); err != nil {
			return mutation.Result{}, err
		}
		return commit(oc, updated, withCatalog(updated))
	})
}

type makeAliveOperator struct{}

func (makeAliveOperator) Name(m mutation.EngineMutation) string {
	return "Make catalog alive " + m.(mutation.MakeCatalogAlive).Name
}

func (makeAliveOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.MakeCatalogAlive)
	c, err := current(oc, m.Name)
	if err != nil {
		return mutation.Result{}, err
	}
	oc.Before(oc.updater(withCatalog(c.Transition(state.GoingAlive))))
	return rewrite(ctx, oc, c, c.Settle(state.Alive))
}

type schemaOperator struct{}

func (schemaOperator) Name(m mutation.EngineMutation) string {
	return "Modify schema of catalog " + m.(mutation.ModifyCatalogSchema).Name
}

func (schemaOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.ModifyCatalogSchema)
	c, err := current(oc, m.Name)
	if err != nil {
		return mutation.Result{}, err
	}
	return rewrite(ctx, oc, c, m.Apply(c))
}

type mutabilityOperator struct{}

func (mutabilityOperator) Name(m mutation.EngineMutation) string {
	s := m.(mutation.SetCatalogMutability)
	if s.Mutable {
		return "Make catalog read-write " + s.Name
	}
	return "Make catalog read-only " + s.Name
}

func (mutabilityOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.SetCatalogMutability)
	c, err := current(oc, m.Name)
	if err != nil {
		return mutation.Result{}, err
	}
	updated := c.Clone()
	updated.Mutable = m.Mutable
	return rewrite(ctx, oc, c, updated)
}

type stateOperator struct{}

func (stateOperator) Name(m mutation.EngineMutation) string {
	s := m.(mutation.SetCatalogState)
	if s.Active {
		return "Activate catalog " + s.Name
	}
	return "Deactivate catalog " + s.Name
}

func (stateOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.SetCatalogState)
	c, err := current(oc, m.Name)
	if err != nil {
		return mutation.Result{}, err
	}

	var next state.Catalog
	if m.Active {
		oc.Before(oc.updater(withCatalog(c.Transition(state.BeingActivated))))
		if _, err := os.Stat(c.Directory); err != nil {
			return mutation.Result{}, fmt.Errorf("failed to load catalog %q: %w", m.Name, err)
		}
		next = c.Settle(c.ActiveState())
	} else {
		oc.Before(oc.updater(withCatalog(c.Transition(state.BeingDeactivated))))
		next = c.Settle(state.Inactive)
	}
	if err := ctx.Err(); err != nil {
		return mutation.Result{}, err
	}
	return commit(oc, next, withCatalog(next))
}
