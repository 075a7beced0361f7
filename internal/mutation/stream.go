package mutation

import "github.com/FgForrest/evitaDB-sub062/internal/state"

// TransactionMutationWithWalFileReference is returned by a WAL append: the
// written transaction wrapper and the position of the record in the log.
type TransactionMutationWithWalFileReference struct {
	TransactionMutation TransactionMutation
	WalReference        state.WalFileReference
}

// Stream iterates over committed mutations. For every committed transaction
// it yields the TransactionMutation first and then the engine mutation.
// Callers must Close the stream.
type Stream interface {
	Next() bool
	Mutation() Mutation
	Err() error
	Close() error
}
