// Package model defines the score provider contract and the artifact-backed
// scorer implementations behind it.
//
// The decision layer only sees the Scorer interface: a probability in [0,1]
// for one validated transaction. Training happens elsewhere; this package
// loads an exported-weights artifact and evaluates it.
package model

import (
	"context"

	"github.com/bedaniele0/fraud-detection/internal/transaction"
)

// Info describes the loaded model for the model-info endpoint.
type Info struct {
	Type         string `json:"model_type"`
	Version      string `json:"model_version"`
	FeatureCount int    `json:"features_count"`
	TrainedAt    string `json:"training_date,omitempty"`
}

// Scorer estimates the fraud probability of a single transaction.
// Implementations must be safe for concurrent use and must return values in
// [0, 1]; out-of-range values are treated as a collaborator defect by the
// decision layer.
type Scorer interface {
	Score(ctx context.Context, v transaction.Vector) (float64, error)
	Info() Info
}

// ConstantScorer returns a fixed probability for every transaction. It is
// the fallback when no model artifact is configured, keeping the API
// contract exercisable in demos and tests.
type ConstantScorer struct {
	P float64
}

func (s ConstantScorer) Score(ctx context.Context, v transaction.Vector) (float64, error) {
	return s.P, nil
}

func (s ConstantScorer) Info() Info {
	return Info{
		Type:         "constant",
		Version:      "0.0.0",
		FeatureCount: transaction.FieldCount,
	}
}
