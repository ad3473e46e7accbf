package calibration

import (
	"errors"
	"math"
	"testing"
)

func TestCalibrate_SelectsBestF1(t *testing.T) {
	// Perfectly separable at 0.5: both lower and higher cuts misclassify.
	scores := []float64{0.1, 0.4, 0.6, 0.9}
	labels := []int{0, 0, 1, 1}

	result, err := Calibrate(scores, labels, Options{Grid: []float64{0.3, 0.5, 0.7}})
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	if result.Threshold != 0.5 {
		t.Errorf("expected threshold 0.5, got %v", result.Threshold)
	}
	if result.Precision != 1.0 || result.Recall != 1.0 || result.F1 != 1.0 {
		t.Errorf("perfect separation should yield P=R=F1=1, got P=%v R=%v F1=%v",
			result.Precision, result.Recall, result.F1)
	}
	if result.Objective != ObjectiveF1 {
		t.Errorf("default objective should be f1, got %s", result.Objective)
	}
	if result.CalibratedAt.IsZero() {
		t.Error("CalibratedAt should be set")
	}
}

func TestCalibrate_TieBreaksTowardLowestThreshold(t *testing.T) {
	// Every candidate below 0.6 flags the same set, so F1 ties across
	// 0.2..0.6; the lowest candidate must win.
	scores := []float64{0.6, 0.7, 0.8}
	labels := []int{1, 1, 1}

	result, err := Calibrate(scores, labels, Options{Grid: []float64{0.2, 0.3, 0.4, 0.5, 0.6}})
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if result.Threshold != 0.2 {
		t.Errorf("tie should break toward lowest threshold, got %v", result.Threshold)
	}
}

func TestCalibrate_CostObjective(t *testing.T) {
	// One fraud at 0.55, many legit between 0.5 and 0.6. With a false
	// negative 75x the price of a false positive, the cheap cut is the low
	// one that catches the fraud despite the false positives.
	scores := []float64{0.55, 0.52, 0.54, 0.56, 0.58}
	labels := []int{1, 0, 0, 0, 0}

	result, err := Calibrate(scores, labels, Options{
		Objective: ObjectiveCost,
		Grid:      []float64{0.5, 0.6},
	})
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	// At 0.5: 4 FP * $2 = $8. At 0.6: 1 FN * $150 = $150.
	if result.Threshold != 0.5 {
		t.Errorf("cost objective should prefer 0.5, got %v", result.Threshold)
	}
	if result.Objective != ObjectiveCost {
		t.Errorf("expected cost objective recorded, got %s", result.Objective)
	}
}

func TestCalibrate_EmptyDataset(t *testing.T) {
	if _, err := Calibrate(nil, nil, Options{}); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("empty input should fail with ErrEmptyDataset, got %v", err)
	}
	if _, err := Calibrate([]float64{0.5}, []int{1, 0}, Options{}); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("mismatched lengths should fail with ErrEmptyDataset, got %v", err)
	}
}

func TestCalibrate_SingleClassDataset(t *testing.T) {
	// All-negative data never errors: every threshold scores 0, the lowest
	// candidate wins, and ROC-AUC is 0 (undefined without both classes).
	result, err := Calibrate([]float64{0.1, 0.2, 0.3}, []int{0, 0, 0}, Options{})
	if err != nil {
		t.Fatalf("single-class dataset should not error: %v", err)
	}
	if result.Threshold != 0.01 {
		t.Errorf("expected lowest grid candidate 0.01, got %v", result.Threshold)
	}
	if result.ROCAUC != 0 {
		t.Errorf("ROC-AUC should be 0 without both classes, got %v", result.ROCAUC)
	}
}

func TestDefaultGrid(t *testing.T) {
	grid := DefaultGrid()
	if len(grid) != 99 {
		t.Fatalf("expected 99 candidates, got %d", len(grid))
	}
	if grid[0] != 0.01 || grid[98] != 0.99 {
		t.Errorf("grid should span 0.01..0.99, got %v..%v", grid[0], grid[98])
	}
}

func TestMetricsAt_InclusiveBoundary(t *testing.T) {
	// A score exactly at the threshold counts as predicted positive.
	m := MetricsAt([]float64{0.5}, []int{1}, 0.5)
	if m.TruePositives != 1 {
		t.Errorf("score == threshold should predict positive, got TP=%d", m.TruePositives)
	}
}

func TestMetricsAt_ZeroDenominators(t *testing.T) {
	// Threshold above every score: no predicted positives, precision 0.
	m := MetricsAt([]float64{0.1, 0.2}, []int{1, 0}, 0.9)
	if m.Precision != 0 {
		t.Errorf("no predictions should give precision 0, got %v", m.Precision)
	}
	// No actual positives: recall 0, not NaN.
	m = MetricsAt([]float64{0.9}, []int{0}, 0.5)
	if m.Recall != 0 || math.IsNaN(m.F1) {
		t.Errorf("no positives should give recall 0 and finite F1, got R=%v F1=%v", m.Recall, m.F1)
	}
}

func TestMetricsAt_ConfusionMatrix(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.3, 0.1}
	labels := []int{1, 0, 1, 0}
	m := MetricsAt(scores, labels, 0.5)

	if m.TruePositives != 1 || m.FalsePositives != 1 || m.FalseNegatives != 1 || m.TrueNegatives != 1 {
		t.Errorf("confusion matrix wrong: TP=%d FP=%d FN=%d TN=%d",
			m.TruePositives, m.FalsePositives, m.FalseNegatives, m.TrueNegatives)
	}
	if m.Precision != 0.5 || m.Recall != 0.5 || m.F1 != 0.5 {
		t.Errorf("expected P=R=F1=0.5, got P=%v R=%v F1=%v", m.Precision, m.Recall, m.F1)
	}
}

func TestROCAUC(t *testing.T) {
	// Perfect ranking.
	if auc := ROCAUC([]float64{0.1, 0.2, 0.8, 0.9}, []int{0, 0, 1, 1}); auc != 1.0 {
		t.Errorf("perfect ranking should give AUC 1, got %v", auc)
	}
	// Inverted ranking.
	if auc := ROCAUC([]float64{0.9, 0.8, 0.2, 0.1}, []int{0, 0, 1, 1}); auc != 0.0 {
		t.Errorf("inverted ranking should give AUC 0, got %v", auc)
	}
	// All scores tied: AUC 0.5 via average ranks.
	if auc := ROCAUC([]float64{0.5, 0.5, 0.5, 0.5}, []int{0, 1, 0, 1}); auc != 0.5 {
		t.Errorf("fully tied scores should give AUC 0.5, got %v", auc)
	}
	// Single class.
	if auc := ROCAUC([]float64{0.5, 0.6}, []int{1, 1}); auc != 0 {
		t.Errorf("single class should give AUC 0, got %v", auc)
	}
}
