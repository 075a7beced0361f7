package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// catalogView is the printed form of a catalog. The directory is relative to
// the storage directory.
type catalogView struct {
	Name          string            `json:"name"`
	State         string            `json:"state"`
	Mutable       bool              `json:"mutable"`
	Live          bool              `json:"live"`
	Description   string            `json:"description,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	SchemaVersion int64             `json:"schemaVersion"`
	Directory     string            `json:"directory"`
	Version       int64             `json:"engineVersion,omitempty"`
}

func newCatalogView(storage string, c state.Catalog, version int64) catalogView {
	dir := c.Directory
	if rel, err := filepath.Rel(storage, dir); err == nil {
		dir = rel
	}
	return catalogView{
		Name:          c.Name,
		State:         c.State.String(),
		Mutable:       c.Mutable,
		Live:          c.Live,
		Description:   c.Description,
		Attributes:    c.Attributes,
		SchemaVersion: c.SchemaVersion,
		Directory:     filepath.ToSlash(dir),
		Version:       version,
	}
}

func (v catalogView) renderText(w io.Writer) {
	fmt.Fprintf(w, "Catalog %s\n", v.Name)
	fmt.Fprintf(w, "  state:          %s\n", v.State)
	fmt.Fprintf(w, "  mutable:        %t\n", v.Mutable)
	fmt.Fprintf(w, "  schema version: %d\n", v.SchemaVersion)
	if v.Description != "" {
		fmt.Fprintf(w, "  description:    %s\n", v.Description)
	}
	keys := make([]string, 0, len(v.Attributes))
	for k := range v.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  attribute:      %s=%s\n", k, v.Attributes[k])
	}
	fmt.Fprintf(w, "  directory:      %s\n", v.Directory)
	if v.Version > 0 {
		fmt.Fprintf(w, "  engine version: %d\n", v.Version)
	}
}

// catalogList is the printed form of every catalog.
type catalogList struct {
	Catalogs []catalogView `json:"catalogs"`
}

func (l catalogList) renderText(w io.Writer) {
	if len(l.Catalogs) == 0 {
		fmt.Fprintln(w, "No catalogs.")
		return
	}
	fmt.Fprintf(w, "%-20s %-12s %s\n", "NAME", "STATE", "MUTABLE")
	for _, c := range l.Catalogs {
		fmt.Fprintf(w, "%-20s %-12s %t\n", c.Name, c.State, c.Mutable)
	}
}

// removal is the printed outcome of catalog remove.
type removal struct {
	Name    string `json:"name"`
	Removed bool   `json:"removed"`
}

func (r removal) renderText(w io.Writer) {
	if r.Removed {
		fmt.Fprintf(w, "Removed catalog %s\n", r.Name)
		return
	}
	fmt.Fprintf(w, "Catalog %s does not exist\n", r.Name)
}

// stateView is the printed form of the durable engine state.
type stateView struct {
	Version          int64                   `json:"version"`
	WalReference     *state.WalFileReference `json:"walReference,omitempty"`
	ActiveCatalogs   []string                `json:"activeCatalogs"`
	InactiveCatalogs []string                `json:"inactiveCatalogs"`
	ReadOnlyCatalogs []string                `json:"readOnlyCatalogs"`
}

func newStateView(es state.EngineState) stateView {
	return stateView{
		Version:          es.Version,
		WalReference:     es.WalReference,
		ActiveCatalogs:   es.ActiveCatalogs,
		InactiveCatalogs: es.InactiveCatalogs,
		ReadOnlyCatalogs: es.ReadOnlyCatalogs,
	}
}

func (v stateView) renderText(w io.Writer) {
	fmt.Fprintf(w, "Engine version: %d\n", v.Version)
	if v.WalReference != nil {
		fmt.Fprintf(w, "WAL version:    %d\n", v.WalReference.Version)
	}
	fmt.Fprintf(w, "Active:         %s\n", joinNames(v.ActiveCatalogs))
	fmt.Fprintf(w, "Inactive:       %s\n", joinNames(v.InactiveCatalogs))
	fmt.Fprintf(w, "Read-only:      %s\n", joinNames(v.ReadOnlyCatalogs))
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

// historyEntry is one committed engine mutation.
type historyEntry struct {
	Version       int64     `json:"version"`
	TransactionID string    `json:"transactionId"`
	CommittedAt   time.Time `json:"committedAt"`
	Operation     string    `json:"operation"`
	Mutation      any       `json:"mutation"`
}

// history is the printed form of a mutation stream.
type history struct {
	Entries []historyEntry `json:"entries"`
}

func (h history) renderText(w io.Writer) {
	if len(h.Entries) == 0 {
		fmt.Fprintln(w, "No committed mutations.")
		return
	}
	for _, e := range h.Entries {
		_, payload, err := mutation.Encode(e.Mutation.(mutation.EngineMutation))
		if err != nil {
			payload = []byte(err.Error())
		}
		fmt.Fprintf(w, "#%d %s %s %s %s\n",
			e.Version, e.CommittedAt.Format(time.RFC3339), e.TransactionID, e.Operation, payload)
	}
}
