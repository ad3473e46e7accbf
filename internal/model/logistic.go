package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/bedaniele0/fraud-detection/internal/transaction"
)

// LogisticModel evaluates a logistic-regression artifact exported from the
// offline training pipeline: an intercept, one coefficient per schema field,
// and optional per-feature standardization parameters.
type LogisticModel struct {
	info         Info
	intercept    float64
	coefficients []float64
	means        []float64 // nil when the artifact was trained unscaled
	scales       []float64
}

// artifact is the on-disk JSON layout of an exported model.
type artifact struct {
	Type         string    `json:"model_type"`
	Version      string    `json:"model_version"`
	TrainedAt    string    `json:"training_date"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Means        []float64 `json:"means,omitempty"`
	Scales       []float64 `json:"scales,omitempty"`
}

// LoadLogistic reads a model artifact from disk and validates it against the
// transaction schema.
func LoadLogistic(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}

	if len(a.Coefficients) != transaction.FieldCount {
		return nil, fmt.Errorf("model artifact has %d coefficients, schema has %d fields",
			len(a.Coefficients), transaction.FieldCount)
	}
	if len(a.Means) > 0 && (len(a.Means) != transaction.FieldCount || len(a.Scales) != transaction.FieldCount) {
		return nil, fmt.Errorf("model artifact standardization parameters do not match schema")
	}
	for i, s := range a.Scales {
		if s == 0 {
			return nil, fmt.Errorf("model artifact scale for %s is zero", transaction.FieldNames[i])
		}
	}

	modelType := a.Type
	if modelType == "" {
		modelType = "LogisticRegression"
	}

	return &LogisticModel{
		info: Info{
			Type:         modelType,
			Version:      a.Version,
			FeatureCount: transaction.FieldCount,
			TrainedAt:    a.TrainedAt,
		},
		intercept:    a.Intercept,
		coefficients: a.Coefficients,
		means:        a.Means,
		scales:       a.Scales,
	}, nil
}

func (m *LogisticModel) Score(ctx context.Context, v transaction.Vector) (float64, error) {
	if len(v) != len(m.coefficients) {
		return 0, fmt.Errorf("vector has %d fields, model expects %d", len(v), len(m.coefficients))
	}

	z := m.intercept
	for i, x := range v {
		if m.means != nil {
			x = (x - m.means[i]) / m.scales[i]
		}
		z += m.coefficients[i] * x
	}
	return sigmoid(z), nil
}

func (m *LogisticModel) Info() Info {
	return m.info
}

func sigmoid(z float64) float64 {
	// Guard the extremes so the result stays strictly within [0, 1]
	// under float rounding.
	if z > 500 {
		return 1
	}
	if z < -500 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}
