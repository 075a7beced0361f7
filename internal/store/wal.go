package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// AppendWal writes the engine mutation committed by txID as the WAL record
// for version. The log must end at version-1.
func (s *Store) AppendWal(
	ctx context.Context,
	version int64,
	txID uuid.UUID,
	m mutation.EngineMutation,
) (mutation.TransactionMutationWithWalFileReference, error) {
	var none mutation.TransactionMutationWithWalFileReference

	kind, payload, err := mutation.Encode(m)
	if err != nil {
		return none, fmt.Errorf("append wal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return none, fmt.Errorf("append wal: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var last, position int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0), COALESCE(MAX(position), 0) FROM wal
	`).Scan(&last, &position)
	if err != nil {
		return none, fmt.Errorf("append wal: read tail: %w", err)
	}
	if version != last+1 {
		return none, fmt.Errorf("append wal: version %d does not follow last version %d", version, last)
	}

	size := int64(len(payload))
	txMutation := mutation.TransactionMutation{
		TransactionID: txID,
		Version:       version,
		MutationCount: 1,
		WalSizeBytes:  size,
		CommittedAt:   s.now().UTC(),
	}
	ref := state.WalFileReference{
		Path:     s.path,
		Version:  version,
		Position: position + size,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wal
		(version, transaction_id, kind, payload, size_bytes, position, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		version,
		txID.String(),
		kind,
		string(payload),
		size,
		ref.Position,
		txMutation.CommittedAt.UnixNano(),
	)
	if err != nil {
		return none, fmt.Errorf("append wal: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return none, fmt.Errorf("append wal: commit: %w", err)
	}

	return mutation.TransactionMutationWithWalFileReference{
		TransactionMutation: txMutation,
		WalReference:        ref,
	}, nil
}

// TruncateWal drops every WAL record beyond ref.Version and returns how many
// were removed. Records past the durable engine state belong to commits that
// never finished.
func (s *Store) TruncateWal(ctx context.Context, ref state.WalFileReference) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM wal WHERE version > ?`, ref.Version)
	if err != nil {
		return 0, fmt.Errorf("truncate wal: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("truncate wal: rows affected: %w", err)
	}
	if removed > 0 {
		s.logger.Warn("truncated unfinished WAL records",
			"after_version", ref.Version,
			"removed", removed,
		)
	}
	return removed, nil
}

// LastVersionInWal returns the highest version in the log, or 0 when empty.
func (s *Store) LastVersionInWal(ctx context.Context) (int64, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM wal`).Scan(&version); err != nil {
		return 0, fmt.Errorf("query last wal version: %w", err)
	}
	return version, nil
}
