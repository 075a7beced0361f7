package mutation

import "errors"

// Precondition failures reported by VerifyApplicability. The transaction
// manager wraps them in an InvalidMutationError.
var (
	ErrCatalogAlreadyExists   = errors.New("catalog already exists")
	ErrCatalogNotFound        = errors.New("catalog not found")
	ErrInvalidCatalogName     = errors.New("invalid catalog name")
	ErrCatalogInactive        = errors.New("catalog is inactive")
	ErrCatalogReadOnly        = errors.New("catalog is read-only")
	ErrInvalidStateTransition = errors.New("invalid catalog state transition")
	ErrInvalidArgument        = errors.New("invalid mutation argument")
)
