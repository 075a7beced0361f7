package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/FgForrest/evitaDB-sub062/internal/state"
)

// StoreEngineState persists es as the new durable engine state. It must
// advance the stored state by exactly one version and reference the WAL
// record of that version.
func (s *Store) StoreEngineState(ctx context.Context, es state.EngineState) error {
	if err := es.Validate(); err != nil {
		return fmt.Errorf("store engine state: %w", err)
	}
	if es.WalReference == nil {
		return fmt.Errorf("store engine state: version %d has no WAL reference", es.Version)
	}

	active, err := marshalNames(es.ActiveCatalogs)
	if err != nil {
		return fmt.Errorf("store engine state: %w", err)
	}
	inactive, err := marshalNames(es.InactiveCatalogs)
	if err != nil {
		return fmt.Errorf("store engine state: %w", err)
	}
	readOnly, err := marshalNames(es.ReadOnlyCatalogs)
	if err != nil {
		return fmt.Errorf("store engine state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store engine state: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var previous int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM engine_state WHERE id = 1`).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store engine state: read previous: %w", err)
	}
	if es.Version != previous+1 {
		return fmt.Errorf("store engine state: version %d does not follow stored version %d", es.Version, previous)
	}

	var walVersion int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM wal WHERE version = ?`, es.WalReference.Version).Scan(&walVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store engine state: WAL has no record for %s", es.WalReference)
	}
	if err != nil {
		return fmt.Errorf("store engine state: read wal: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO engine_state
		(id, protocol_version, version, wal_path, wal_version, wal_position,
		 active_catalogs, inactive_catalogs, read_only_catalogs, stored_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			protocol_version = excluded.protocol_version,
			version = excluded.version,
			wal_path = excluded.wal_path,
			wal_version = excluded.wal_version,
			wal_position = excluded.wal_position,
			active_catalogs = excluded.active_catalogs,
			inactive_catalogs = excluded.inactive_catalogs,
			read_only_catalogs = excluded.read_only_catalogs,
			stored_at = excluded.stored_at
	`,
		es.ProtocolVersion,
		es.Version,
		es.WalReference.Path,
		es.WalReference.Version,
		es.WalReference.Position,
		active,
		inactive,
		readOnly,
		s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store engine state: upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store engine state: commit: %w", err)
	}
	return nil
}

// LoadEngineState returns the last durable engine state, or nil when the
// engine never committed anything.
func (s *Store) LoadEngineState(ctx context.Context) (*state.EngineState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT protocol_version, version, wal_path, wal_version, wal_position,
		       active_catalogs, inactive_catalogs, read_only_catalogs
		FROM engine_state
		WHERE id = 1
	`)

	var (
		es                         state.EngineState
		walPath                    sql.NullString
		walVersion, walPosition    sql.NullInt64
		active, inactive, readOnly string
	)
	err := row.Scan(&es.ProtocolVersion, &es.Version, &walPath, &walVersion, &walPosition,
		&active, &inactive, &readOnly)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}
	if es.ProtocolVersion != state.ProtocolVersion {
		return nil, fmt.Errorf("load engine state: unsupported protocol version %d", es.ProtocolVersion)
	}

	if walPath.Valid {
		es.WalReference = &state.WalFileReference{
			Path:     walPath.String,
			Version:  walVersion.Int64,
			Position: walPosition.Int64,
		}
	}
	if es.ActiveCatalogs, err = unmarshalNames(active); err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}
	if es.InactiveCatalogs, err = unmarshalNames(inactive); err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}
	if es.ReadOnlyCatalogs, err = unmarshalNames(readOnly); err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}
	if err := es.Validate(); err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}
	return &es, nil
}
