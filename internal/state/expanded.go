package state

import (
	"maps"
	"slices"
	"sort"
)

// Expanded is the in-memory working state of the engine: the durable
// EngineState it derives from plus live catalog references. It is never
// mutated in place.
type Expanded struct {
	startVersion int64
	engineState  EngineState
	catalogs     map[string]Catalog
}

// NewExpanded builds the working state from a loaded snapshot and the catalogs
// found in storage.
func NewExpanded(engineState EngineState, catalogs []Catalog) *Expanded {
	byName := make(map[string]Catalog, len(catalogs))
	for _, c := range catalogs {
		byName[c.Name] = c.Clone()
	}
	return &Expanded{
		startVersion: engineState.Version,
		engineState:  engineState.Clone(),
		catalogs:     byName,
	}
}

// StartVersion is the version the engine was started with.
func (e *Expanded) StartVersion() int64 { return e.startVersion }

// Version is the durable engine version this state is based on.
func (e *Expanded) Version() int64 { return e.engineState.Version }

// EngineState returns a copy of the durable snapshot this state is based on.
func (e *Expanded) EngineState() EngineState { return e.engineState.Clone() }

// WalReference returns the WAL reference of the durable snapshot, or nil.
func (e *Expanded) WalReference() *WalFileReference {
	return e.engineState.Clone().WalReference
}

// Catalog looks up a live catalog reference.
func (e *Expanded) Catalog(name string) (Catalog, bool) {
	c, ok := e.catalogs[name]
	if !ok {
		return Catalog{}, false
	}
	return c.Clone(), true
}

// Catalogs returns all live catalogs ordered by name.
func (e *Expanded) Catalogs() []Catalog {
	out := make([]Catalog, 0, len(e.catalogs))
	for _, name := range e.CatalogNames() {
		out = append(out, e.catalogs[name].Clone())
	}
	return out
}

// CatalogNames returns the names of all live catalogs, sorted.
func (e *Expanded) CatalogNames() []string {
	names := slices.Collect(maps.Keys(e.catalogs))
	sort.Strings(names)
	return names
}

// IsReadOnly reports whether the catalog exists and rejects writes.
func (e *Expanded) IsReadOnly(name string) bool {
	c, ok := e.catalogs[name]
	return ok && !c.Mutable
}

// Snapshot derives the durable EngineState for version from the committed
// state of every catalog. Transitional states are ignored; catalogs that were
// never committed are left out.
func (e *Expanded) Snapshot(walReference WalFileReference, version int64) EngineState {
	active := []string{}
	inactive := []string{}
	readOnly := []string{}
	for _, name := range e.CatalogNames() {
		c := e.catalogs[name]
		switch {
		case c.IsActive():
			active = append(active, name)
		case c.Committed == Inactive:
			inactive = append(inactive, name)
		default:
			continue
		}
		if !c.Mutable {
			readOnly = append(readOnly, name)
		}
	}
	ref := walReference
	return EngineState{
		ProtocolVersion:  ProtocolVersion,
		Version:          version,
		WalReference:     &ref,
		ActiveCatalogs:   active,
		InactiveCatalogs: inactive,
		ReadOnlyCatalogs: readOnly,
	}
}

// WithEngineState rebases the working state on a freshly persisted snapshot.
func (e *Expanded) WithEngineState(engineState EngineState) *Expanded {
	return &Expanded{
		startVersion: e.startVersion,
		engineState:  engineState.Clone(),
		catalogs:     e.catalogs,
	}
}

// Builder starts a modification of e.
func (e *Expanded) Builder() *Builder {
	catalogs := maps.Clone(e.catalogs)
	if catalogs == nil {
		catalogs = make(map[string]Catalog)
	}
	return &Builder{base: e, catalogs: catalogs}
}

// Builder accumulates catalog changes and produces a new Expanded state.
type Builder struct {
	base     *Expanded
	catalogs map[string]Catalog
}

// WithCatalog adds or replaces a catalog reference.
func (b *Builder) WithCatalog(c Catalog) *Builder {
	b.catalogs[c.Name] = c.Clone()
	return b
}

// WithoutCatalog removes a catalog reference.
func (b *Builder) WithoutCatalog(name string) *Builder {
	delete(b.catalogs, name)
	return b
}

// Catalog returns the catalog as currently staged in the builder.
func (b *Builder) Catalog(name string) (Catalog, bool) {
	c, ok := b.catalogs[name]
	return c, ok
}

// Build produces the new state. The durable snapshot is inherited from the
// base state; it only changes when the transaction manager persists a new one.
func (b *Builder) Build() *Expanded {
	return &Expanded{
		startVersion: b.base.startVersion,
		engineState:  b.base.engineState,
		catalogs:     b.catalogs,
	}
}
