package testutil

import (
	"sync"

	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// MemoryEngine holds the working state in memory and remembers every state
// that was installed.
type MemoryEngine struct {
	mu      sync.Mutex
	current *state.Expanded
	history []*state.Expanded
}

// NewMemoryEngine starts from an empty engine state with the given catalogs.
func NewMemoryEngine(catalogs ...state.Catalog) *MemoryEngine {
	return &MemoryEngine{current: state.NewExpanded(state.EmptyEngineState(), catalogs)}
}

// State returns the current working state.
func (e *MemoryEngine) State() *state.Expanded {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// SetNextState installs next.
func (e *MemoryEngine) SetNextState(next *state.Expanded) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = next
	e.history = append(e.history, next)
}

// History returns the installed states, oldest first.
func (e *MemoryEngine) History() []*state.Expanded {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*state.Expanded(nil), e.history...)
}
