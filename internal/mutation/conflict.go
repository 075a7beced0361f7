package mutation

import "fmt"

// ConflictKind is the category of resource a conflict key refers to.
type ConflictKind string

const (
	// ConflictCatalog guards a catalog name.
	ConflictCatalog ConflictKind = "catalog"
)

// ConflictKey identifies a resource an engine mutation will touch. Two keys
// collide when they are equal; the struct is comparable so it can key a map.
type ConflictKey struct {
	Kind ConflictKind
	Name string
}

// CatalogConflictKey guards the catalog with the given name.
func CatalogConflictKey(name string) ConflictKey {
	return ConflictKey{Kind: ConflictCatalog, Name: name}
}

func (k ConflictKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Name)
}
