package decision

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists decisions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed decision audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the decisions table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS decisions (
			id             VARCHAR(16) PRIMARY KEY,
			score          NUMERIC(10,9) NOT NULL CHECK (score >= 0 AND score <= 1),
			is_fraud       BOOLEAN NOT NULL,
			risk_tier      VARCHAR(8) NOT NULL CHECK (risk_tier IN ('low', 'medium', 'high')),
			threshold_used NUMERIC(5,4) NOT NULL,
			model_version  VARCHAR(64),
			evaluated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_decisions_evaluated
			ON decisions (evaluated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_decisions_fraud
			ON decisions (evaluated_at DESC) WHERE is_fraud;
	`)
	return err
}

func (s *PostgresStore) Record(ctx context.Context, d *Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, score, is_fraud, risk_tier, threshold_used, model_version, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		d.ID,
		d.Score,
		d.IsFraud,
		string(d.RiskTier),
		d.ThresholdUsed,
		d.ModelVersion,
		d.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, score, is_fraud, risk_tier, threshold_used, model_version, evaluated_at
		FROM decisions
		ORDER BY evaluated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Decision
	for rows.Next() {
		var d Decision
		var tier string
		var version sql.NullString

		if err := rows.Scan(&d.ID, &d.Score, &d.IsFraud, &tier, &d.ThresholdUsed, &version, &d.EvaluatedAt); err != nil {
			continue
		}
		d.RiskTier = Tier(tier)
		d.ModelVersion = version.String
		result = append(result, &d)
	}
	return result, nil
}
