package threshold

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore persists threshold snapshots in PostgreSQL. Snapshots are
// append-only: every adoption inserts a row, so the table doubles as the
// threshold audit trail; Load reads the latest row.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed threshold store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the threshold_snapshots table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS threshold_snapshots (
			id           BIGSERIAL PRIMARY KEY,
			value        NUMERIC(5,4) NOT NULL CHECK (value >= 0 AND value <= 1),
			source       VARCHAR(16) NOT NULL CHECK (source IN ('manual', 'calibration')),
			calibration  JSONB,
			adopted_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_threshold_snapshots_adopted
			ON threshold_snapshots (adopted_at DESC);
	`)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, snap *Snapshot) error {
	var calJSON []byte
	if snap.Calibration != nil {
		var err error
		calJSON, err = json.Marshal(snap.Calibration)
		if err != nil {
			return fmt.Errorf("marshal calibration provenance: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threshold_snapshots (value, source, calibration, adopted_at)
		VALUES ($1, $2, $3, $4)
	`, snap.Value, string(snap.Source), calJSON, snap.AdoptedAt)
	if err != nil {
		return fmt.Errorf("save threshold snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT value, source, calibration, adopted_at
		FROM threshold_snapshots
		ORDER BY adopted_at DESC, id DESC
		LIMIT 1
	`)

	var snap Snapshot
	var source string
	var calJSON []byte
	err := row.Scan(&snap.Value, &source, &calJSON, &snap.AdoptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load threshold snapshot: %w", err)
	}

	snap.Source = Source(source)
	if len(calJSON) > 0 {
		if err := json.Unmarshal(calJSON, &snap.Calibration); err != nil {
			return nil, fmt.Errorf("parse calibration provenance: %w", err)
		}
	}
	return &snap, nil
}
