package operator

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
)

const (
	journalPrefix = ".pending-"
	journalSuffix = ".yaml"
)

// journal records the directory changes of one mutation before they are
// made. A journal that survives a crash is settled by Recover: the mutation
// committed when the durable engine state lists Catalog exactly when Present
// is set, otherwise its changes are reverted.
type journal struct {
	Transaction string `yaml:"transaction"`
	Catalog     string `yaml:"catalog"`
	Present     bool   `yaml:"present"`

	// Created directories are removed on revert.
	Created []string `yaml:"created,omitempty"`
	// Moves are undone in reverse order on revert.
	Moves []journalMove `yaml:"moves,omitempty"`
}

// journalMove is a directory rename. Name is the catalog whose descriptor
// belongs in From. Paths are relative to the storage root.
type journalMove struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Name string `yaml:"name"`
}

func (f catalogFiles) journalName(txID uuid.UUID) string {
	return journalPrefix + txID.String() + journalSuffix
}

// rel returns path relative to the storage root when it lies below it.
func (f catalogFiles) rel(path string) string {
	if r, err := filepath.Rel(f.root, path); err == nil && !strings.HasPrefix(r, "..") {
		return r
	}
	return path
}

func (f catalogFiles) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.root, path)
}

// journaled writes j, runs fn with an undo log and removes j once fn either
// committed or had its changes undone. A journal whose undo failed stays
// behind for Recover.
func (f catalogFiles) journaled(oc Context, j journal, fn func(u *undoLog) (mutation.Result, error)) (mutation.Result, error) {
	j.Transaction = oc.TransactionID.String()
	for i, dir := range j.Created {
		j.Created[i] = f.rel(dir)
	}
	for i, mv := range j.Moves {
		j.Moves[i] = journalMove{From: f.rel(mv.From), To: f.rel(mv.To), Name: mv.Name}
	}
	data, err := yaml.Marshal(j)
	if err != nil {
		return mutation.Result{}, fmt.Errorf("failed to encode journal: %w", err)
	}
	name := f.journalName(oc.TransactionID)
	if err := writeAtomic(f.root, name, data); err != nil {
		return mutation.Result{}, fmt.Errorf("failed to write journal: %w", err)
	}

	var u undoLog
	res, err := fn(&u)
	if err != nil {
		if uerr := u.run(oc.logger(), oc.TransactionID); uerr != nil {
			return res, err
		}
	}
	if rerr := os.Remove(filepath.Join(f.root, name)); rerr != nil {
		oc.logger().Warn("failed to remove journal", "file", name, "error", rerr)
	}
	return res, err
}

// Recover settles the journals left in root by interrupted mutations.
// durable reports whether a catalog is part of the durable engine state.
// It must run before parked directories are discarded, since reverting a
// removal moves the parked directory back.
func Recover(root string, durable func(name string) bool, logger *slog.Logger) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to list storage directory: %w", err)
	}
	f := catalogFiles{root: root}

	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, journalPrefix) || !strings.HasSuffix(name, journalSuffix) {
			continue
		}
		path := filepath.Join(root, name)
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read journal %s: %w", name, err))
			continue
		}
		var j journal
		if err := yaml.Unmarshal(data, &j); err != nil {
			errs = append(errs, fmt.Errorf("failed to decode journal %s: %w", name, err))
			continue
		}

		if durable(j.Catalog) != j.Present {
			logger.Warn("reverting catalog changes of an interrupted mutation",
				"transaction", j.Transaction, "catalog", j.Catalog)
			if err := f.revert(j); err != nil {
				errs = append(errs, fmt.Errorf("failed to revert transaction %s: %w", j.Transaction, err))
				continue
			}
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove journal %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (f catalogFiles) revert(j journal) error {
	for i := len(j.Moves) - 1; i >= 0; i-- {
		mv := j.Moves[i]
		from, to := f.abs(mv.From), f.abs(mv.To)
		if exists(to) && !exists(from) {
			if err := os.Rename(to, from); err != nil {
				return err
			}
		}
		desc, err := ReadDescriptor(from)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return err
		}
		if desc.Name != mv.Name {
			desc.Name = mv.Name
			if err := WriteDescriptor(from, desc); err != nil {
				return err
			}
		}
	}
	for _, dir := range j.Created {
		if err := os.RemoveAll(f.abs(dir)); err != nil {
			return err
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
