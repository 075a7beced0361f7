package state

import (
	"fmt"
	"slices"
)

// ProtocolVersion is the version of the durable engine state layout.
const ProtocolVersion = 1

// WalFileReference points at the durable WAL record of a given engine version.
type WalFileReference struct {
	// Path identifies the WAL file (the engine database).
	Path string `json:"path"`
	// Version is the engine version of the last record covered by the reference.
	Version int64 `json:"version"`
	// Position is the byte offset just past that record in the log.
	Position int64 `json:"position"`
}

func (r WalFileReference) String() string {
	return fmt.Sprintf("%s@%d(#%d)", r.Path, r.Version, r.Position)
}

// EngineState is the immutable, versioned, persisted snapshot of the engine.
//
// Invariants:
//   - Version grows by exactly one per committed engine mutation
//   - WalReference points at the WAL record matching Version
//   - ActiveCatalogs and InactiveCatalogs are sorted and disjoint
type EngineState struct {
	ProtocolVersion  int               `json:"protocolVersion"`
	Version          int64             `json:"version"`
	WalReference     *WalFileReference `json:"walReference,omitempty"`
	ActiveCatalogs   []string          `json:"activeCatalogs"`
	InactiveCatalogs []string          `json:"inactiveCatalogs"`
	ReadOnlyCatalogs []string          `json:"readOnlyCatalogs"`
}

// EmptyEngineState is the state of an engine that never committed anything.
func EmptyEngineState() EngineState {
	return EngineState{
		ProtocolVersion:  ProtocolVersion,
		ActiveCatalogs:   []string{},
		InactiveCatalogs: []string{},
		ReadOnlyCatalogs: []string{},
	}
}

// Clone returns a deep copy.
func (s EngineState) Clone() EngineState {
	s.ActiveCatalogs = slices.Clone(s.ActiveCatalogs)
	s.InactiveCatalogs = slices.Clone(s.InactiveCatalogs)
	s.ReadOnlyCatalogs = slices.Clone(s.ReadOnlyCatalogs)
	if s.WalReference != nil {
		ref := *s.WalReference
		s.WalReference = &ref
	}
	return s
}

// Validate checks the structural invariants of the snapshot.
func (s EngineState) Validate() error {
	if s.Version < 0 {
		return fmt.Errorf("engine state version %d is negative", s.Version)
	}
	for _, list := range [][]string{s.ActiveCatalogs, s.InactiveCatalogs, s.ReadOnlyCatalogs} {
		if !slices.IsSorted(list) {
			return fmt.Errorf("catalog list %v is not sorted", list)
		}
	}
	for _, name := range s.ActiveCatalogs {
		if _, found := slices.BinarySearch(s.InactiveCatalogs, name); found {
			return fmt.Errorf("catalog %q is both active and inactive", name)
		}
	}
	if s.Version > 0 && s.WalReference == nil {
		return fmt.Errorf("engine state version %d has no WAL reference", s.Version)
	}
	if s.WalReference != nil && s.WalReference.Version != s.Version {
		return fmt.Errorf("WAL reference %s does not match version %d", s.WalReference, s.Version)
	}
	return nil
}

// CatalogNames returns active and inactive catalog names, sorted.
func (s EngineState) CatalogNames() []string {
	names := make([]string, 0, len(s.ActiveCatalogs)+len(s.InactiveCatalogs))
	names = append(names, s.ActiveCatalogs...)
	names = append(names, s.InactiveCatalogs...)
	slices.Sort(names)
	return names
}

// IsActive reports whether name is listed among the active catalogs.
func (s EngineState) IsActive(name string) bool {
	_, found := slices.BinarySearch(s.ActiveCatalogs, name)
	return found
}

// IsInactive reports whether name is listed among the inactive catalogs.
func (s EngineState) IsInactive(name string) bool {
	_, found := slices.BinarySearch(s.InactiveCatalogs, name)
	return found
}

// IsReadOnly reports whether name is listed among the read-only catalogs.
func (s EngineState) IsReadOnly(name string) bool {
	_, found := slices.BinarySearch(s.ReadOnlyCatalogs, name)
	return found
}
