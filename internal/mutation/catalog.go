package mutation

import (
	"fmt"

	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// CreateCatalog creates a new, empty catalog in the WarmingUp state.
type CreateCatalog struct {
	Name string `json:"name"`
}

// NewCreateCatalog normalizes name and returns the mutation.
func NewCreateCatalog(name string) CreateCatalog {
	return CreateCatalog{Name: NormalizeCatalogName(name)}
}

func (m CreateCatalog) Kind() Kind                  { return KindCreateCatalog }
func (m CreateCatalog) CatalogName() string         { return m.Name }
func (m CreateCatalog) CatalogNames() []string      { return []string{m.Name} }
func (m CreateCatalog) ConflictKeys() []ConflictKey { return catalogKeys(m.Name) }

func (m CreateCatalog) VerifyApplicability(v View) error {
	if err := ValidateCatalogName(m.Name); err != nil {
		return err
	}
	return absentCatalog(v, m.Name)
}

// DuplicateCatalog copies an existing catalog under a new name. The copy is
// registered as inactive.
type DuplicateCatalog struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// NewDuplicateCatalog normalizes both names and returns the mutation.
func NewDuplicateCatalog(source, target string) DuplicateCatalog {
	return DuplicateCatalog{
		Source: NormalizeCatalogName(source),
		Target: NormalizeCatalogName(target),
	}
}

func (m DuplicateCatalog) Kind() Kind             { return KindDuplicateCatalog }
func (m DuplicateCatalog) CatalogName() string    { return m.Target }
func (m DuplicateCatalog) CatalogNames() []string { return []string{m.Target} }
func (m DuplicateCatalog) ConflictKeys() []ConflictKey {
	return catalogKeys(m.Source, m.Target)
}

func (m DuplicateCatalog) VerifyApplicability(v View) error {
	if err := ValidateCatalogName(m.Target); err != nil {
		return err
	}
	if m.Source == m.Target {
		return fmt.Errorf("%w: source and target are both %q", ErrInvalidArgument, m.Source)
	}
	src, err := existingCatalog(v, m.Source)
	if err != nil {
		return err
	}
	if !src.IsDurable() {
		return fmt.Errorf("%w: %q is not committed yet", ErrInvalidStateTransition, m.Source)
	}
	return absentCatalog(v, m.Target)
}

// MakeCatalogAlive switches a WarmingUp catalog to the transactional Alive
// state.
type MakeCatalogAlive struct {
	Name string `json:"name"`
}

// NewMakeCatalogAlive normalizes name and returns the mutation.
func NewMakeCatalogAlive(name string) MakeCatalogAlive {
	return MakeCatalogAlive{Name: NormalizeCatalogName(name)}
}

func (m MakeCatalogAlive) Kind() Kind                  { return KindMakeCatalogAlive }
func (m MakeCatalogAlive) CatalogName() string         { return m.Name }
func (m MakeCatalogAlive) CatalogNames() []string      { return []string{m.Name} }
func (m MakeCatalogAlive) ConflictKeys() []ConflictKey { return catalogKeys(m.Name) }

func (m MakeCatalogAlive) VerifyApplicability(v View) error {
	c, err := existingCatalog(v, m.Name)
	if err != nil {
		return err
	}
	if c.State != state.WarmingUp {
		return fmt.Errorf("%w: %q is %s, expected %s", ErrInvalidStateTransition, m.Name, c.State, state.WarmingUp)
	}
	return nil
}

// ModifyCatalogName renames a catalog. With OverwriteTarget an existing
// catalog named NewName is replaced.
type ModifyCatalogName struct {
	Name            string `json:"name"`
	NewName         string `json:"newName"`
	OverwriteTarget bool   `json:"overwriteTarget"`
}

// NewModifyCatalogName normalizes both names and returns the mutation.
func NewModifyCatalogName(name, newName string, overwriteTarget bool) ModifyCatalogName {
	return ModifyCatalogName{
		Name:            NormalizeCatalogName(name),
		NewName:         NormalizeCatalogName(newName),
		OverwriteTarget: overwriteTarget,
	}
}

func (m ModifyCatalogName) Kind() Kind             { return KindModifyCatalogName }
func (m ModifyCatalogName) CatalogName() string    { return m.Name }
func (m ModifyCatalogName) CatalogNames() []string { return []string{m.Name, m.NewName} }
func (m ModifyCatalogName) ConflictKeys() []ConflictKey {
	return catalogKeys(m.Name, m.NewName)
}

func (m ModifyCatalogName) VerifyApplicability(v View) error {
	if err := ValidateCatalogName(m.NewName); err != nil {
		return err
	}
	if m.Name == m.NewName {
		return fmt.Errorf("%w: catalog %q renamed to itself", ErrInvalidArgument, m.Name)
	}
	c, err := existingCatalog(v, m.Name)
	if err != nil {
		return err
	}
	if !c.IsDurable() {
		return fmt.Errorf("%w: %q is not committed yet", ErrInvalidStateTransition, m.Name)
	}
	if m.OverwriteTarget {
		return nil
	}
	return absentCatalog(v, m.NewName)
}

// ModifyCatalogSchema changes the catalog-level schema: its description and
// free-form attributes. Each applied change bumps the schema version.
type ModifyCatalogSchema struct {
	Name              string            `json:"name"`
	Description       *string           `json:"description,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	RemovedAttributes []string          `json:"removedAttributes,omitempty"`
}

// NewModifyCatalogSchema normalizes name and returns the mutation. A nil
// description leaves the current one untouched.
func NewModifyCatalogSchema(name string, description *string, set map[string]string, removed ...string) ModifyCatalogSchema {
	return ModifyCatalogSchema{
		Name:              NormalizeCatalogName(name),
		Description:       description,
		Attributes:        set,
		RemovedAttributes: removed,
	}
}

func (m ModifyCatalogSchema) Kind() Kind                  { return KindModifyCatalogSchema }
func (m ModifyCatalogSchema) CatalogName() string         { return m.Name }
func (m ModifyCatalogSchema) CatalogNames() []string      { return []string{m.Name} }
func (m ModifyCatalogSchema) ConflictKeys() []ConflictKey { return catalogKeys(m.Name) }

func (m ModifyCatalogSchema) VerifyApplicability(v View) error {
	if m.Description == nil && len(m.Attributes) == 0 && len(m.RemovedAttributes) == 0 {
		return fmt.Errorf("%w: schema mutation of %q changes nothing", ErrInvalidArgument, m.Name)
	}
	for _, key := range m.RemovedAttributes {
		if _, ok := m.Attributes[key]; ok {
			return fmt.Errorf("%w: attribute %q is both set and removed", ErrInvalidArgument, key)
		}
	}
	c, err := existingCatalog(v, m.Name)
	if err != nil {
		return err
	}
	if !c.IsActive() {
		return fmt.Errorf("%w: %q", ErrCatalogInactive, m.Name)
	}
	if !c.Mutable {
		return fmt.Errorf("%w: %q", ErrCatalogReadOnly, m.Name)
	}
	return nil
}

// Apply returns c with the schema change applied.
func (m ModifyCatalogSchema) Apply(c state.Catalog) state.Catalog {
	c = c.Clone()
	if m.Description != nil {
		c.Description = *m.Description
	}
	if len(m.Attributes) > 0 && c.Attributes == nil {
		c.Attributes = make(map[string]string, len(m.Attributes))
	}
	for k, val := range m.Attributes {
		c.Attributes[k] = val
	}
	for _, k := range m.RemovedAttributes {
		delete(c.Attributes, k)
	}
	c.SchemaVersion++
	return c
}

// RemoveCatalog deletes a catalog and its data.
type RemoveCatalog struct {
	Name string `json:"name"`
}

// NewRemoveCatalog normalizes name and returns the mutation.
func NewRemoveCatalog(name string) RemoveCatalog {
	return RemoveCatalog{Name: NormalizeCatalogName(name)}
}

func (m RemoveCatalog) Kind() Kind                  { return KindRemoveCatalog }
func (m RemoveCatalog) CatalogName() string         { return m.Name }
func (m RemoveCatalog) CatalogNames() []string      { return []string{m.Name} }
func (m RemoveCatalog) ConflictKeys() []ConflictKey { return catalogKeys(m.Name) }

func (m RemoveCatalog) VerifyApplicability(v View) error {
	_, err := existingCatalog(v, m.Name)
	return err
}

// RestoreCatalog registers a catalog from a backup directory. The restored
// catalog is inactive until activated.
type RestoreCatalog struct {
	Name      string `json:"name"`
	SourceDir string `json:"sourceDir"`
}

// NewRestoreCatalog normalizes name and returns the mutation.
func NewRestoreCatalog(name, sourceDir string) RestoreCatalog {
	return RestoreCatalog{Name: NormalizeCatalogName(name), SourceDir: sourceDir}
}

func (m RestoreCatalog) Kind() Kind                  { return KindRestoreCatalog }
func (m RestoreCatalog) CatalogName() string         { return m.Name }
func (m RestoreCatalog) CatalogNames() []string      { return []string{m.Name} }
func (m RestoreCatalog) ConflictKeys() []ConflictKey { return catalogKeys(m.Name) }

func (m RestoreCatalog) VerifyApplicability(v View) error {
	if err := ValidateCatalogName(m.Name); err != nil {
		return err
	}
	if m.SourceDir == "" {
		return fmt.Errorf("%w: restore of %q has no source directory", ErrInvalidArgument, m.Name)
	}
	return absentCatalog(v, m.Name)
}

// SetCatalogMutability switches a catalog between read-write and read-only.
type SetCatalogMutability struct {
	Name    string `json:"name"`
	Mutable bool   `json:"mutable"`
}

// NewSetCatalogMutability normalizes name and returns the mutation.
func NewSetCatalogMutability(name string, mutable bool) SetCatalogMutability {
	return SetCatalogMutability{Name: NormalizeCatalogName(name), Mutable: mutable}
}

func (m SetCatalogMutability) Kind() Kind                  { return KindSetCatalogMutability }
func (m SetCatalogMutability) CatalogName() string         { return m.Name }
func (m SetCatalogMutability) CatalogNames() []string      { return []string{m.Name} }
func (m SetCatalogMutability) ConflictKeys() []ConflictKey { return catalogKeys(m.Name) }

func (m SetCatalogMutability) VerifyApplicability(v View) error {
	c, err := existingCatalog(v, m.Name)
	if err != nil {
		return err
	}
	if !c.IsActive() {
		return fmt.Errorf("%w: %q", ErrCatalogInactive, m.Name)
	}
	if c.Mutable == m.Mutable {
		return fmt.Errorf("%w: %q already has mutable=%t", ErrInvalidStateTransition, m.Name, m.Mutable)
	}
	return nil
}

// SetCatalogState activates (loads) or deactivates (unloads) a catalog.
type SetCatalogState struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// NewSetCatalogState normalizes name and returns the mutation.
func NewSetCatalogState(name string, active bool) SetCatalogState {
	return SetCatalogState{Name: NormalizeCatalogName(name), Active: active}
}

func (m SetCatalogState) Kind() Kind                  { return KindSetCatalogState }
func (m SetCatalogState) CatalogName() string         { return m.Name }
func (m SetCatalogState) CatalogNames() []string      { return []string{m.Name} }
func (m SetCatalogState) ConflictKeys() []ConflictKey { return catalogKeys(m.Name) }

func (m SetCatalogState) VerifyApplicability(v View) error {
	c, err := existingCatalog(v, m.Name)
	if err != nil {
		return err
	}
	switch {
	case m.Active && c.Committed == state.Inactive:
		return nil
	case !m.Active && c.IsActive():
		return nil
	}
	return fmt.Errorf("%w: %q is %s", ErrInvalidStateTransition, m.Name, c.State)
}
