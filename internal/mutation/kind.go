package mutation

import "fmt"

// Kind identifies the type of a mutation. It is stable and stored in the WAL.
type Kind int

const (
	// KindTransaction is the WAL wrapper written before every engine mutation.
	KindTransaction Kind = iota + 1
	KindCreateCatalog
	KindDuplicateCatalog
	KindMakeCatalogAlive
	KindModifyCatalogName
	KindModifyCatalogSchema
	KindRemoveCatalog
	KindRestoreCatalog
	KindSetCatalogMutability
	KindSetCatalogState
)

var kindNames = map[Kind]string{
	KindTransaction:          "transaction",
	KindCreateCatalog:        "createCatalog",
	KindDuplicateCatalog:     "duplicateCatalog",
	KindMakeCatalogAlive:     "makeCatalogAlive",
	KindModifyCatalogName:    "modifyCatalogName",
	KindModifyCatalogSchema:  "modifyCatalogSchema",
	KindRemoveCatalog:        "removeCatalog",
	KindRestoreCatalog:       "restoreCatalog",
	KindSetCatalogMutability: "setCatalogMutability",
	KindSetCatalogState:      "setCatalogState",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of String.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown mutation kind %q", name)
}

// EngineKinds lists every engine mutation kind in declaration order.
// The transaction wrapper is not an engine mutation and is not listed.
func EngineKinds() []Kind {
	return []Kind{
		KindCreateCatalog,
		KindDuplicateCatalog,
		KindMakeCatalogAlive,
		KindModifyCatalogName,
		KindModifyCatalogSchema,
		KindRemoveCatalog,
		KindRestoreCatalog,
		KindSetCatalogMutability,
		KindSetCatalogState,
	}
}
