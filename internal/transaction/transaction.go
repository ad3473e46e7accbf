// Package transaction defines the card transaction input schema and the
// validation layer that guards the scoring path.
//
// A transaction is a fixed set of 30 numeric fields: a time offset, 28
// anonymized PCA components (V1..V28), and an amount. Validation rejects
// anything that is missing, non-numeric, or non-finite before a score is
// ever requested.
package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// MaxBatchSize is the maximum number of transactions accepted per batch request.
const MaxBatchSize = 1000

// FieldCount is the number of fields in the canonical schema.
const FieldCount = 30

// FieldNames lists the schema fields in canonical order:
// Time, V1..V28, Amount.
var FieldNames = buildFieldNames()

func buildFieldNames() []string {
	names := make([]string, 0, FieldCount)
	names = append(names, "Time")
	for i := 1; i <= 28; i++ {
		names = append(names, fmt.Sprintf("V%d", i))
	}
	return append(names, "Amount")
}

// Vector is a validated transaction in canonical field order.
type Vector []float64

// Time returns the time-offset field.
func (v Vector) Time() float64 { return v[0] }

// Amount returns the transaction amount field.
func (v Vector) Amount() float64 { return v[len(v)-1] }

var (
	// ErrEmptyBatch is returned when a batch contains no records.
	ErrEmptyBatch = errors.New("batch contains no transactions")
	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize.
	ErrBatchTooLarge = fmt.Errorf("batch exceeds maximum of %d transactions", MaxBatchSize)
)

// Validation failure reasons, surfaced verbatim to callers.
const (
	ReasonMissingField = "missing_field"
	ReasonNonNumeric   = "non_numeric_value"
	ReasonNonFinite    = "non_finite_value"
)

// FieldError reports why a single record failed validation.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidateSingle checks one decoded JSON record against the schema and
// returns its values as a Vector in canonical field order. It is a pure
// function of the input.
func ValidateSingle(record map[string]any) (Vector, error) {
	vec := make(Vector, 0, FieldCount)
	for _, name := range FieldNames {
		raw, ok := record[name]
		if !ok || raw == nil {
			return nil, &FieldError{Field: name, Reason: ReasonMissingField}
		}
		f, ok := toFloat(raw)
		if !ok {
			return nil, &FieldError{Field: name, Reason: ReasonNonNumeric}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &FieldError{Field: name, Reason: ReasonNonFinite}
		}
		vec = append(vec, f)
	}
	return vec, nil
}

// BatchResult is the validation outcome for one record of a batch,
// at its original position.
type BatchResult struct {
	Index  int
	Vector Vector      // nil when the record failed validation
	Err    *FieldError // nil when the record is valid
}

// ValidateBatch validates each record independently and returns results in
// input order. Invalid records are reported with their index and reason,
// never dropped; a batch with some invalid records still succeeds.
// The batch as a whole is rejected only for size violations.
func ValidateBatch(records []map[string]any) ([]BatchResult, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(records) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	results := make([]BatchResult, len(records))
	for i, record := range records {
		vec, err := ValidateSingle(record)
		results[i] = BatchResult{Index: i, Vector: vec}
		if err != nil {
			var fe *FieldError
			errors.As(err, &fe)
			results[i].Err = fe
		}
	}
	return results, nil
}

// toFloat coerces the numeric representations a decoded JSON body can carry.
// Strings and other types are rejected: the contract is numeric fields only.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
