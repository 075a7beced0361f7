package operator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

type createOperator struct {
	fs catalogFiles
}

func (createOperator) Name(m mutation.EngineMutation) string {
	return "Create catalog " + m.(mutation.CreateCatalog).Name
}

func (o createOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.CreateCatalog)
	dir := o.fs.dir(m.Name)
	pending := state.NewCatalog(m.Name, dir)

	if err := ensureAbsent(dir); err != nil {
		return mutation.Result{}, err
	}
	j := journal{Catalog: m.Name, Present: true, Created: []string{dir}}
	return o.fs.journaled(oc, j, func(u *undoLog) (mutation.Result, error) {
		oc.Before(oc.updater(withCatalog(pending)))

		if err := os.Mkdir(dir, 0o755); err != nil {
			return mutation.Result{}, fmt.Errorf("failed to create catalog directory: %w", err)
		}
		u.push(func() error { return os.RemoveAll(dir) })

		created := pending.Settle(state.WarmingUp)
		if err := WriteDescriptor(dir, created); err != nil {
			return mutation.Result{}, err
		}
		if err := ctx.Err(); err != nil {
			return mutation.Result{}, err
		}
		return commit(oc, created, withCatalog(created))
	})
}

type duplicateOperator struct {
	fs catalogFiles
}

func (duplicateOperator) Name(m mutation.EngineMutation) string {
	d := m.(mutation.DuplicateCatalog)
	return fmt.Sprintf("Duplicate catalog %s to %s", d.Source, d.Target)
}

func (o duplicateOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.DuplicateCatalog)
	src, err := current(oc, m.Source)
	if err != nil {
		return mutation.Result{}, err
	}
	dir := o.fs.dir(m.Target)

	if err := ensureAbsent(dir); err != nil {
		return mutation.Result{}, err
	}
	j := journal{Catalog: m.Target, Present: true, Created: []string{dir}}
	return o.fs.journaled(oc, j, func(u *undoLog) (mutation.Result, error) {
		oc.Before(oc.updater(withCatalog(state.NewCatalog(m.Target, dir))))

		u.push(func() error { return os.RemoveAll(dir) })
		if err := copyDir(src.Directory, dir, oc.report); err != nil {
			return mutation.Result{}, fmt.Errorf("failed to copy catalog %q: %w", m.Source, err)
		}

		dup := src.Clone()
		dup.Name = m.Target
		dup.Directory = dir
		dup = dup.Settle(state.Inactive)
		if err := WriteDescriptor(dir, dup); err != nil {
			return mutation.Result{}, err
		}
		if err := ctx.Err(); err != nil {
			return mutation.Result{}, err
		}
		return commit(oc, dup, withCatalog(dup))
	})
}

type restoreOperator struct {
	fs catalogFiles
}

func (restoreOperator) Name(m mutation.EngineMutation) string {
	return "Restore catalog " + m.(mutation.RestoreCatalog).Name
}

func (o restoreOperator) Apply(ctx context.Context, oc Context) (mutation.Result, error) {
	m := oc.Mutation.(mutation.RestoreCatalog)
	dir := o.fs.dir(m.Name)
	pending := state.NewCatalog(m.Name, dir)

	if err := ensureAbsent(dir); err != nil {
		return mutation.Result{}, err
	}
	j := journal{Catalog: m.Name, Present: true, Created: []string{dir}}
	return o.fs.journaled(oc, j, func(u *undoLog) (mutation.Result, error) {
		oc.Before(oc.updater(withCatalog(pending)))

		u.push(func() error { return os.RemoveAll(dir) })
		if err := copyDir(m.SourceDir, dir, oc.report); err != nil {
			return mutation.Result{}, fmt.Errorf("failed to restore catalog %q: %w", m.Name, err)
		}

		restored := pending
		desc, err := ReadDescriptor(dir)
		switch {
		case err == nil:
			restored = desc
			restored.Name = m.Name
		case errors.Is(err, fs.ErrNotExist):
		default:
			return mutation.Result{}, err
		}
		restored = restored.Settle(state.Inactive)
		if err := WriteDescriptor(dir, restored); err != nil {
			return mutation.Result{}, err
		}
		if err := ctx.Err(); err != nil {
			return mutation.Result{}, err
		}
		return commit(oc, restored, withCatalog(restored))
	})
}
