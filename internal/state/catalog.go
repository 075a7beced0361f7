package state

import (
	"fmt"
	"maps"
)

// CatalogState is the lifecycle phase of a catalog.
type CatalogState int

const (
	// Unknown marks a catalog that has never been made durable.
	Unknown CatalogState = iota
	// WarmingUp catalogs accept bulk writes without transactions.
	WarmingUp
	// Alive catalogs are transactional and serve traffic.
	Alive
	// Inactive catalogs are registered but not loaded.
	Inactive

	// BeingCreated through GoingAlive are transitional states. They only exist
	// in memory while an engine mutation runs.
	BeingCreated
	BeingActivated
	BeingDeactivated
	BeingRemoved
	BeingRenamed
	GoingAlive
)

var catalogStateNames = map[CatalogState]string{
	Unknown:          "UNKNOWN",
	WarmingUp:        "WARMING_UP",
	Alive:            "ALIVE",
	Inactive:         "INACTIVE",
	BeingCreated:     "BEING_CREATED",
	BeingActivated:   "BEING_ACTIVATED",
	BeingDeactivated: "BEING_DEACTIVATED",
	BeingRemoved:     "BEING_REMOVED",
	BeingRenamed:     "BEING_RENAMED",
	GoingAlive:       "GOING_ALIVE",
}

func (s CatalogState) String() string {
	if name, ok := catalogStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CatalogState(%d)", int(s))
}

// IsTransitional reports whether s only exists while a mutation is running.
func (s CatalogState) IsTransitional() bool {
	return s >= BeingCreated
}

// ParseCatalogState is the inverse of String.
func ParseCatalogState(name string) (CatalogState, error) {
	for s, n := range catalogStateNames {
		if n == name {
			return s, nil
		}
	}
	return Unknown, fmt.Errorf("unknown catalog state %q", name)
}

// Catalog is the live runtime reference to a catalog as seen by the engine.
// Values are treated as immutable; use the With*/Transition/Settle helpers to
// derive modified copies.
type Catalog struct {
	Name string `yaml:"name" json:"name"`

	// State is what readers currently observe.
	State CatalogState `yaml:"-" json:"state"`

	// Committed is the last durable state. Unknown for catalogs that are still
	// being created.
	Committed CatalogState `yaml:"-" json:"-"`

	Mutable bool `yaml:"mutable" json:"mutable"`

	// Live is set once the catalog went alive; reactivation restores Alive
	// instead of WarmingUp.
	Live bool `yaml:"live" json:"live"`

	Description   string            `yaml:"description,omitempty" json:"description,omitempty"`
	Attributes    map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	SchemaVersion int64             `yaml:"schemaVersion" json:"schemaVersion"`

	// Directory is the catalog's folder inside the storage directory.
	Directory string `yaml:"-" json:"directory"`
}

// NewCatalog returns a catalog that exists only in memory, in the BeingCreated
// state.
func NewCatalog(name, directory string) Catalog {
	return Catalog{
		Name:      name,
		State:     BeingCreated,
		Committed: Unknown,
		Mutable:   true,
		Directory: directory,
	}
}

// Clone returns a deep copy.
func (c Catalog) Clone() Catalog {
	c.Attributes = maps.Clone(c.Attributes)
	return c
}

// Transition returns a copy that shows the transitional state s to readers while
// keeping the committed state untouched.
func (c Catalog) Transition(s CatalogState) Catalog {
	c = c.Clone()
	c.State = s
	return c
}

// Settle returns a copy whose visible and committed states are both s.
func (c Catalog) Settle(s CatalogState) Catalog {
	c = c.Clone()
	c.State = s
	c.Committed = s
	if s == Alive {
		c.Live = true
	}
	return c
}

// ActiveState is the state an active catalog settles in: Alive once it went
// live, WarmingUp otherwise.
func (c Catalog) ActiveState() CatalogState {
	if c.Live {
		return Alive
	}
	return WarmingUp
}

// IsActive reports whether the durable state of the catalog is loaded.
func (c Catalog) IsActive() bool {
	return c.Committed == WarmingUp || c.Committed == Alive
}

// IsDurable reports whether the catalog has ever been committed.
func (c Catalog) IsDurable() bool {
	return c.Committed != Unknown
}

// InTransition reports whether a mutation currently holds the catalog in a
// speculative state.
func (c Catalog) InTransition() bool {
	return c.State.IsTransitional()
}

func (c Catalog) String() string {
	return fmt.Sprintf("Catalog[%s, %s, mutable=%t]", c.Name, c.State, c.Mutable)
}
