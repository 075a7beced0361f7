package operator

import (
	"context"
	"fmt"
	"os"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

type renameOperator struct {
	fs catalogFiles
}

func (renameOperator) Name(m mutation.EngineMutation) string {
	r := m.(mutation.ModifyCatalogName)
	if r.OverwriteTarget {
		return fmt.Sprintf("Replace catalog %s with %s", r.NewName, r.Name)
	}
	return fmt.Sprintf("Rename catalog %s to %s", r.Name, r.NewName)
}

func (o renameOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.ModifyCatalogName)
	c, err := current(oc, m.Name)
	if err != nil {
		return mutation.Result{}, err
	}
	target, replacing := oc.Engine.State().Catalog(m.NewName)
	newDir := o.fs.dir(m.NewName)
	trash := o.fs.trashDir(m.NewName, oc.TransactionID)

	oc.Before(oc.updater(func(_ int64, prior *state.Expanded) *state.Expanded {
		b := prior.Builder().WithCatalog(c.Transition(state.BeingRenamed))
		if replacing {
			b.WithCatalog(target.Transition(state.BeingRemoved))
		}
		return b.Build()
	}))

	if !replacing {
		if err := ensureAbsent(newDir); err != nil {
			return mutation.Result{}, err
		}
	}
	j := journal{Catalog: m.Name, Present: false}
	if replacing {
		j.Moves = append(j.Moves, journalMove{From: target.Directory, To: trash, Name: m.NewName})
	}
	j.Moves = append(j.Moves, journalMove{From: c.Directory, To: newDir, Name: m.Name})

	res, err := o.fs.journaled(oc, j, func(u *undoLog) (mutation.Result, error) {
		if replacing {
			if err := os.Rename(target.Directory, trash); err != nil {
				return mutation.Result{}, fmt.Errorf("failed to park catalog %q: %w", m.NewName, err)
			}
			u.push(func() error { return os.Rename(trash, target.Directory) })
		}
		if err := ensureAbsent(newDir); err != nil {
			return mutation.Result{}, err
		}
		if err := os.Rename(c.Directory, newDir); err != nil {
			return mutation.Result{}, fmt.Errorf("failed to move catalog %q: %w", m.Name, err)
		}
		u.push(func() error { return os.Rename(newDir, c.Directory) })

		renamed := c.Clone()
		renamed.Name = m.NewName
		renamed.Directory = newDir
		renamed = renamed.Settle(c.Committed)
		if err := WriteDescriptor(newDir, renamed); err != nil {
			return mutation.Result{}, err
		}
		u.push(func() error { return WriteDescriptor(newDir, c) })

		if err := ctx.Err(); err != nil {
			return mutation.Result{}, err
		}
		return commit(oc, renamed, func(_ int64, prior *state.Expanded) *state.Expanded {
			return prior.Builder().WithoutCatalog(m.Name).WithCatalog(renamed).Build()
		})
	})
	if err == nil && replacing {
		discard(oc, trash)
	}
	return res, err
}

type removeOperator struct {
	fs catalogFiles
}

func (removeOperator) Name(m mutation.EngineMutation) string {
	return "Remove catalog " + m.(mutation.RemoveCatalog).Name
}

func (o removeOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.RemoveCatalog)
	c, err := current(oc, m.Name)
	if err != nil {
		return mutation.Result{}, err
	}
	trash := o.fs.trashDir(m.Name, oc.TransactionID)
	oc.Before(oc.updater(withCatalog(c.Transition(state.BeingRemoved))))

	parked := false
	j := journal{
		Catalog: m.Name,
		Present: false,
		Moves:   []journalMove{{From: c.Directory, To: trash, Name: m.Name}},
	}
	res, err := o.fs.journaled(oc, j, func(u *undoLog) (mutation.Result, error) {
		switch err := os.Rename(c.Directory, trash); {
		case err == nil:
			parked = true
			u.push(func() error { return os.Rename(trash, c.Directory) })
		case os.IsNotExist(err):
			oc.logger().Warn("catalog directory is missing", "catalog", m.Name, "dir", c.Directory)
		default:
			return mutation.Result{}, fmt.Errorf("failed to park catalog %q: %w", m.Name, err)
		}
		if err := ctx.Err(); err != nil {
			return mutation.Result{}, err
		}
		return commit(oc, c, func(_ int64, prior *state.Expanded) *state.Expanded {
			return prior.Builder().WithoutCatalog(m.Name).Build()
		})
	})
	if err == nil && parked {
		discard(oc, trash)
	}
	return res, err
}
