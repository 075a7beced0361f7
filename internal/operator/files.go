package operator

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// DescriptorFile is the name of the per-catalog descriptor inside the catalog
// directory.
const DescriptorFile = "catalog.yaml"

// trashPrefix marks directories parked by an in-flight removal or overwrite.
const trashPrefix = ".trash-"

func fmtNotFound(name string) error {
	return fmt.Errorf("%w: %q", mutation.ErrCatalogNotFound, name)
}

// catalogFiles manages catalog directories below the storage root.
type catalogFiles struct {
	root string
}

func (f catalogFiles) dir(name string) string {
	return filepath.Join(f.root, name)
}

func (f catalogFiles) trashDir(name string, txID uuid.UUID) string {
	return filepath.Join(f.root, trashPrefix+name+"-"+txID.String())
}

// IsCatalogDir reports whether a directory entry below the storage root can
// hold a catalog. Hidden entries (parked trash, journals) are skipped.
func IsCatalogDir(entry fs.DirEntry) bool {
	return entry.IsDir() && !strings.HasPrefix(entry.Name(), ".")
}

// IsParkedDir reports whether a directory entry is a catalog parked by a
// removal or overwrite that never got to discard it.
func IsParkedDir(entry fs.DirEntry) bool {
	return entry.IsDir() && strings.HasPrefix(entry.Name(), trashPrefix)
}

// WriteDescriptor stores the persistent attributes of c in its directory.
// The file is replaced atomically.
func WriteDescriptor(dir string, c state.Catalog) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode descriptor of %q: %w", c.Name, err)
	}
	if err := writeAtomic(dir, DescriptorFile, data); err != nil {
		return fmt.Errorf("failed to write descriptor of %q: %w", c.Name, err)
	}
	return nil
}

// writeAtomic replaces dir/name with data through a temporary file.
func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// ReadDescriptor loads the descriptor stored in dir. The returned catalog has
// its Directory set but no lifecycle state; the caller decides it.
func ReadDescriptor(dir string) (state.Catalog, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptorFile))
	if err != nil {
		return state.Catalog{}, fmt.Errorf("failed to read descriptor in %s: %w", dir, err)
	}
	var c state.Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return state.Catalog{}, fmt.Errorf("failed to decode descriptor in %s: %w", dir, err)
	}
	c.Directory = dir
	return c, nil
}

// copyDir copies the regular files and directories below src into dst,
// which must not exist. report receives the share of files copied so far.
func copyDir(src, dst string, report func(int)) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	if err := ensureAbsent(dst); err != nil {
		return err
	}

	total := 0
	err = filepath.WalkDir(src, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			total++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", src, err)
	}

	copied := 0
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			if err := copyFile(path, target); err != nil {
				return err
			}
			copied++
			if report != nil && total > 0 {
				report(copied * 99 / total)
			}
			return nil
		default:
			return fmt.Errorf("unsupported file type at %s", path)
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ensureAbsent fails when dir already exists on disk.
func ensureAbsent(dir string) error {
	_, err := os.Lstat(dir)
	switch {
	case err == nil:
		return fmt.Errorf("%w: directory %s exists", mutation.ErrCatalogAlreadyExists, dir)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("failed to inspect %s: %w", dir, err)
	}
}

// withUndo runs fn and reverts its recorded file changes when it fails.
func withUndo(oc Context, fn func(u *undoLog) (mutation.Result, error)) (mutation.Result, error) {
	var u undoLog
	res, err := fn(&u)
	if err != nil {
		u.run(oc.logger(), oc.TransactionID)
	}
	return res, err
}

// discard removes a parked directory once the mutation committed.
func discard(oc Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		oc.logger().Warn("failed to remove parked catalog directory", "dir", dir, "error", err)
	}
}

// undoLog collects compensating file actions. They run in reverse order when
// the mutation does not commit.
type undoLog struct {
	steps []func() error
}

func (u *undoLog) push(step func() error) {
	u.steps = append(u.steps, step)
}

func (u *undoLog) run(logger *slog.Logger, txID uuid.UUID) error {
	var errs []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i](); err != nil {
			errs = append(errs, err)
		}
	}
	u.steps = nil
	err := errors.Join(errs...)
	if err != nil {
		logger.Error("failed to undo catalog file changes", "transaction", txID, "error", err)
	}
	return err
}
