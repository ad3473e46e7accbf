// Package calibration selects the decision threshold that best serves a
// stated business objective, given model scores and true labels from a
// labeled validation set.
//
// Calibration is a one-shot offline computation: it scans a grid of
// candidate thresholds, computes confusion-matrix metrics at each, and
// returns the candidate that maximizes the objective. It never touches the
// live threshold; adopting the result is the threshold store's job.
package calibration

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Objective selects what "best threshold" means.
type Objective string

const (
	// ObjectiveF1 maximizes the F1 score. This is the default, matching the
	// offline tuning runs the production threshold was originally chosen by.
	ObjectiveF1 Objective = "f1"
	// ObjectiveCost minimizes expected cost using per-unit false-positive
	// and false-negative costs.
	ObjectiveCost Objective = "cost"
)

// Default unit costs for ObjectiveCost: a false positive costs an analyst
// review (~$2), a missed fraud costs the average chargeback (~$150).
const (
	DefaultFalsePositiveCost = 2.0
	DefaultFalseNegativeCost = 150.0
)

// ErrEmptyDataset is returned when scores/labels are empty or of mismatched
// length. Calibration cannot produce a threshold; the caller must keep the
// previously active one.
var ErrEmptyDataset = errors.New("empty or mismatched calibration dataset")

// Result is the outcome of one calibration run. Immutable once produced; it
// becomes the provenance record of the threshold it proposes.
type Result struct {
	Threshold    float64   `json:"threshold"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	F1           float64   `json:"f1_score"`
	ROCAUC       float64   `json:"roc_auc"`
	Objective    Objective `json:"objective"`
	CalibratedAt time.Time `json:"calibrated_at"`
}

// Options configures a calibration run. The zero value means:
// F1 objective, default grid, default unit costs.
type Options struct {
	Objective         Objective
	Grid              []float64 // candidate thresholds, ascending
	FalsePositiveCost float64
	FalseNegativeCost float64
}

// DefaultGrid returns the standard candidate grid: 0.01 to 0.99 inclusive
// in steps of 0.01 (99 candidates).
func DefaultGrid() []float64 {
	grid := make([]float64, 0, 99)
	for i := 1; i <= 99; i++ {
		grid = append(grid, float64(i)/100)
	}
	return grid
}

// Calibrate scans the candidate grid and returns the threshold maximizing
// the objective. Labels are 0/1. Ties are broken toward the lowest
// threshold: among equally good boundaries, prefer the one that flags more
// transactions.
func Calibrate(scores []float64, labels []int, opts Options) (*Result, error) {
	if len(scores) == 0 || len(scores) != len(labels) {
		return nil, ErrEmptyDataset
	}

	if opts.Objective == "" {
		opts.Objective = ObjectiveF1
	}
	if len(opts.Grid) == 0 {
		opts.Grid = DefaultGrid()
	}
	if opts.FalsePositiveCost == 0 {
		opts.FalsePositiveCost = DefaultFalsePositiveCost
	}
	if opts.FalseNegativeCost == 0 {
		opts.FalseNegativeCost = DefaultFalseNegativeCost
	}

	best := &Result{Threshold: math.NaN()}
	bestValue := math.Inf(-1)

	for _, t := range opts.Grid {
		m := MetricsAt(scores, labels, t)

		var value float64
		switch opts.Objective {
		case ObjectiveCost:
			// Express as maximize by negating the cost.
			value = -(float64(m.FalsePositives)*opts.FalsePositiveCost +
				float64(m.FalseNegatives)*opts.FalseNegativeCost)
		default:
			value = m.F1
		}

		// Strictly-greater comparison over an ascending grid keeps the
		// lowest threshold among ties.
		if value > bestValue {
			bestValue = value
			best = &Result{
				Threshold: t,
				Precision: m.Precision,
				Recall:    m.Recall,
				F1:        m.F1,
			}
		}
	}

	best.ROCAUC = ROCAUC(scores, labels)
	best.Objective = opts.Objective
	best.CalibratedAt = time.Now().UTC()
	return best, nil
}

// Metrics holds the confusion matrix and derived rates at one threshold.
// Degenerate denominators yield 0 rather than an error, so thresholds that
// predict no positives remain comparable and simply score poorly.
type Metrics struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
}

// MetricsAt computes confusion-matrix metrics for predictions
// score >= threshold (inclusive boundary, same rule the decision engine uses).
func MetricsAt(scores []float64, labels []int, threshold float64) Metrics {
	var m Metrics
	for i, s := range scores {
		predicted := s >= threshold
		actual := labels[i] == 1
		switch {
		case predicted && actual:
			m.TruePositives++
		case predicted && !actual:
			m.FalsePositives++
		case !predicted && actual:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}

	if p := m.TruePositives + m.FalsePositives; p > 0 {
		m.Precision = float64(m.TruePositives) / float64(p)
	}
	if a := m.TruePositives + m.FalseNegatives; a > 0 {
		m.Recall = float64(m.TruePositives) / float64(a)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// ROCAUC computes the area under the ROC curve via the rank-sum
// (Mann-Whitney U) formulation, averaging ranks across tied scores.
// Returns 0 when either class is absent.
func ROCAUC(scores []float64, labels []int) float64 {
	n := len(scores)
	pos := 0
	for _, l := range labels {
		if l == 1 {
			pos++
		}
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return 0
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	// Assign average ranks to ties, accumulate positive-class rank sum.
	rankSum := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && scores[idx[j]] == scores[idx[i]] {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if labels[idx[k]] == 1 {
				rankSum += avgRank
			}
		}
		i = j
	}

	u := rankSum - float64(pos)*float64(pos+1)/2
	return u / (float64(pos) * float64(neg))
}
