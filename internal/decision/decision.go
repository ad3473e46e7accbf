// Package decision implements the threshold-calibrated fraud decision layer.
//
// A decision is pure arithmetic over two inputs: the model's fraud
// probability and the currently active threshold. A transaction is flagged
// when score >= threshold; the risk tier is a fixed, threshold-independent
// banding of the score so that two transactions with the same probability
// always land in the same tier regardless of threshold moves.
package decision

import (
	"context"
	"errors"
	"time"
)

// Tier is the coarse risk banding of a fraud probability.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tier boundaries. Scores below MediumTierFloor are low risk; scores at or
// above HighTierFloor are high risk.
const (
	MediumTierFloor = 0.30
	HighTierFloor   = 0.70
)

var (
	// ErrInvalidScore is returned when a score provider hands back a value
	// outside [0, 1]. This is a collaborator defect, not client error.
	ErrInvalidScore = errors.New("score outside [0, 1]")

	// ErrInvalidThreshold is returned when the threshold is outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold outside [0, 1]")
)

// Decision is the immutable record of one evaluated transaction.
type Decision struct {
	ID            string    `json:"transaction_id"`
	Score         float64   `json:"fraud_probability"`
	IsFraud       bool      `json:"is_fraud"`
	RiskTier      Tier      `json:"risk_level"`
	ThresholdUsed float64   `json:"threshold_used"`
	ModelVersion  string    `json:"model_version,omitempty"`
	EvaluatedAt   time.Time `json:"prediction_timestamp"`
}

// Decide evaluates a score against a threshold. The comparison is inclusive:
// a score exactly at the threshold is flagged as fraud.
func Decide(score, threshold float64) (*Decision, error) {
	if score < 0 || score > 1 {
		return nil, ErrInvalidScore
	}
	if threshold < 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	return &Decision{
		Score:         score,
		IsFraud:       score >= threshold,
		RiskTier:      RiskTier(score),
		ThresholdUsed: threshold,
	}, nil
}

// RiskTier bands a score into low / medium / high. Boundaries are inclusive
// on the upper tier: 0.30 is medium, 0.70 is high.
func RiskTier(score float64) Tier {
	switch {
	case score >= HighTierFloor:
		return TierHigh
	case score >= MediumTierFloor:
		return TierMedium
	default:
		return TierLow
	}
}

// Store persists decisions for the audit trail.
type Store interface {
	Record(ctx context.Context, d *Decision) error
	ListRecent(ctx context.Context, limit int) ([]*Decision, error)
}
