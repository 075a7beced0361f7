package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
)

// CommittedMutationStream streams committed transactions starting at
// version, oldest first.
func (s *Store) CommittedMutationStream(ctx context.Context, version int64) (mutation.Stream, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT version, transaction_id, kind, payload, size_bytes, committed_at
		FROM wal
		WHERE version >= ?
		ORDER BY version ASC
	`, version)
	if err != nil {
		return nil, fmt.Errorf("query committed mutations: %w", err)
	}
	return &mutationStream{rows: rows}, nil
}

// ReversedCommittedMutationStream streams committed transactions newest
// first, starting at version or at the end of the log when version is nil.
func (s *Store) ReversedCommittedMutationStream(ctx context.Context, version *int64) (mutation.Stream, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if version == nil {
		rows, err = s.readDB.QueryContext(ctx, `
			SELECT version, transaction_id, kind, payload, size_bytes, committed_at
			FROM wal
			ORDER BY version DESC
		`)
	} else {
		rows, err = s.readDB.QueryContext(ctx, `
			SELECT version, transaction_id, kind, payload, size_bytes, committed_at
			FROM wal
			WHERE version <= ?
			ORDER BY version DESC
		`, *version)
	}
	if err != nil {
		return nil, fmt.Errorf("query committed mutations: %w", err)
	}
	return &mutationStream{rows: rows}, nil
}

// mutationStream turns WAL rows into a flat sequence of mutations: the
// transaction wrapper of a record followed by its engine mutation.
type mutationStream struct {
	rows    *sql.Rows
	current mutation.Mutation
	pending mutation.EngineMutation
	err     error
	closed  bool
}

func (s *mutationStream) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if s.pending != nil {
		s.current, s.pending = s.pending, nil
		return true
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			s.err = fmt.Errorf("iterate committed mutations: %w", err)
		}
		s.Close()
		return false
	}

	tx, m, err := scanWalRecord(s.rows)
	if err != nil {
		s.err = err
		s.Close()
		return false
	}
	s.current, s.pending = tx, m
	return true
}

func (s *mutationStream) Mutation() mutation.Mutation {
	return s.current
}

func (s *mutationStream) Err() error {
	return s.err
}

func (s *mutationStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.rows.Close()
}

func scanWalRecord(rows *sql.Rows) (mutation.TransactionMutation, mutation.EngineMutation, error) {
	var (
		tx          mutation.TransactionMutation
		txID        string
		kind        string
		payload     string
		committedAt int64
	)
	if err := rows.Scan(&tx.Version, &txID, &kind, &payload, &tx.WalSizeBytes, &committedAt); err != nil {
		return tx, nil, fmt.Errorf("scan wal record: %w", err)
	}
	id, err := uuid.Parse(txID)
	if err != nil {
		return tx, nil, fmt.Errorf("scan wal record %d: %w", tx.Version, err)
	}
	m, err := mutation.Decode(kind, []byte(payload))
	if err != nil {
		return tx, nil, fmt.Errorf("scan wal record %d: %w", tx.Version, err)
	}
	tx.TransactionID = id
	tx.MutationCount = 1
	tx.CommittedAt = time.Unix(0, committedAt).UTC()
	return tx, m, nil
}
