package decision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/bedaniele0/fraud-detection/internal/model"
	"github.com/bedaniele0/fraud-detection/internal/threshold"
	"github.com/bedaniele0/fraud-detection/internal/transaction"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validRecord() map[string]any {
	record := make(map[string]any, transaction.FieldCount)
	record["Time"] = 0.0
	for i := 1; i <= 28; i++ {
		record[fmt.Sprintf("V%d", i)] = 0.1
	}
	record["Amount"] = 100.0
	return record
}

// scriptedScorer returns a fixed sequence of scores, one per call.
type scriptedScorer struct {
	scores []float64
	calls  int
}

func (s *scriptedScorer) Score(ctx context.Context, v transaction.Vector) (float64, error) {
	if s.calls >= len(s.scores) {
		return 0, errors.New("scorer exhausted")
	}
	score := s.scores[s.calls]
	s.calls++
	return score, nil
}

func (s *scriptedScorer) Info() model.Info {
	return model.Info{Type: "scripted", Version: "test", FeatureCount: transaction.FieldCount}
}

func activeCell(t *testing.T, value float64) *threshold.Cell {
	t.Helper()
	cell := threshold.NewCell(nil)
	if _, err := cell.Set(context.Background(), value); err != nil {
		t.Fatalf("seed threshold: %v", err)
	}
	return cell
}

// ---------------------------------------------------------------------------
// DecideOne
// ---------------------------------------------------------------------------

func TestService_DecideOne(t *testing.T) {
	svc := NewService(&scriptedScorer{scores: []float64{0.85}}, activeCell(t, 0.3), nil, testLogger())

	d, err := svc.DecideOne(context.Background(), validRecord())
	if err != nil {
		t.Fatalf("DecideOne failed: %v", err)
	}

	if !d.IsFraud {
		t.Error("0.85 against threshold 0.3 should be fraud")
	}
	if d.RiskTier != TierHigh {
		t.Errorf("expected high risk, got %s", d.RiskTier)
	}
	if d.ThresholdUsed != 0.3 {
		t.Errorf("expected threshold_used 0.3, got %v", d.ThresholdUsed)
	}
	if len(d.ID) != 16 || d.ID[:4] != "TXN-" {
		t.Errorf("expected TXN-prefixed 16-char id, got %q", d.ID)
	}
	if d.ModelVersion != "test" {
		t.Errorf("expected model version from scorer, got %q", d.ModelVersion)
	}
	if d.EvaluatedAt.IsZero() {
		t.Error("EvaluatedAt should be set")
	}
}

func TestService_DecideOne_ValidationError(t *testing.T) {
	svc := NewService(&scriptedScorer{scores: []float64{0.5}}, activeCell(t, 0.5), nil, testLogger())

	record := validRecord()
	delete(record, "V12")

	_, err := svc.DecideOne(context.Background(), record)
	var fe *transaction.FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fe.Field != "V12" {
		t.Errorf("expected failing field V12, got %s", fe.Field)
	}
}

func TestService_DecideOne_NoThreshold(t *testing.T) {
	svc := NewService(&scriptedScorer{scores: []float64{0.5}}, threshold.NewCell(nil), nil, testLogger())

	_, err := svc.DecideOne(context.Background(), validRecord())
	if !errors.Is(err, threshold.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestService_DecideOne_NoModel(t *testing.T) {
	svc := NewService(nil, activeCell(t, 0.5), nil, testLogger())

	_, err := svc.DecideOne(context.Background(), validRecord())
	if !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("expected ErrModelNotLoaded, got %v", err)
	}
}

func TestService_DecideOne_UniqueIDs(t *testing.T) {
	svc := NewService(model.ConstantScorer{P: 0.5}, activeCell(t, 0.5), nil, testLogger())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		d, err := svc.DecideOne(context.Background(), validRecord())
		if err != nil {
			t.Fatalf("DecideOne failed: %v", err)
		}
		if seen[d.ID] {
			t.Fatalf("duplicate transaction id %q", d.ID)
		}
		seen[d.ID] = true
	}
}

// ---------------------------------------------------------------------------
// DecideBatch
// ---------------------------------------------------------------------------

func TestService_DecideBatch_OrderAndStats(t *testing.T) {
	scorer := &scriptedScorer{scores: []float64{0.1, 0.35, 0.85}}
	svc := NewService(scorer, activeCell(t, 0.3), nil, testLogger())

	records := []map[string]any{validRecord(), validRecord(), validRecord()}
	outcome, err := svc.DecideBatch(context.Background(), records)
	if err != nil {
		t.Fatalf("DecideBatch failed: %v", err)
	}

	if len(outcome.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(outcome.Items))
	}

	wantFraud := []bool{false, true, true}
	wantTier := []Tier{TierLow, TierMedium, TierHigh}
	for i, item := range outcome.Items {
		if item.Index != i {
			t.Errorf("item %d carries index %d", i, item.Index)
		}
		if item.Decision == nil {
			t.Fatalf("item %d has no decision", i)
		}
		if item.Decision.IsFraud != wantFraud[i] {
			t.Errorf("item %d: fraud=%v, want %v", i, item.Decision.IsFraud, wantFraud[i])
		}
		if item.Decision.RiskTier != wantTier[i] {
			t.Errorf("item %d: tier=%s, want %s", i, item.Decision.RiskTier, wantTier[i])
		}
	}

	stats := outcome.Stats
	if stats.TotalTransactions != 3 || stats.FraudCount != 2 {
		t.Errorf("expected 3 decided / 2 fraud, got %d/%d", stats.TotalTransactions, stats.FraudCount)
	}
	if want := 2.0 / 3.0; stats.FraudRate != want {
		t.Errorf("expected fraud rate %v, got %v", want, stats.FraudRate)
	}
	if stats.ProcessingTime < 0 {
		t.Errorf("processing time should be non-negative, got %v", stats.ProcessingTime)
	}
}

func TestService_DecideBatch_PartialValidationFailure(t *testing.T) {
	scorer := &scriptedScorer{scores: []float64{0.9, 0.1}}
	svc := NewService(scorer, activeCell(t, 0.5), nil, testLogger())

	bad := validRecord()
	bad["Amount"] = "free"

	outcome, err := svc.DecideBatch(context.Background(), []map[string]any{
		validRecord(), bad, validRecord(),
	})
	if err != nil {
		t.Fatalf("mixed batch should succeed, got %v", err)
	}

	if outcome.Items[0].Decision == nil || outcome.Items[2].Decision == nil {
		t.Error("valid records should be decided")
	}
	if outcome.Items[1].Error == nil {
		t.Fatal("invalid record should carry a positional error")
	}
	if outcome.Items[1].Error.Reason != transaction.ReasonNonNumeric {
		t.Errorf("expected non_numeric_value, got %s", outcome.Items[1].Error.Reason)
	}
	if outcome.Items[1].Decision != nil {
		t.Error("invalid record must not carry a decision")
	}

	// Stats cover only the decided portion.
	if outcome.Stats.TotalTransactions != 2 || outcome.Stats.FraudCount != 1 {
		t.Errorf("expected 2 decided / 1 fraud, got %d/%d",
			outcome.Stats.TotalTransactions, outcome.Stats.FraudCount)
	}
}

func TestService_DecideBatch_SizeViolations(t *testing.T) {
	svc := NewService(model.ConstantScorer{P: 0.5}, activeCell(t, 0.5), nil, testLogger())

	if _, err := svc.DecideBatch(context.Background(), nil); !errors.Is(err, transaction.ErrEmptyBatch) {
		t.Errorf("empty batch: expected ErrEmptyBatch, got %v", err)
	}

	over := make([]map[string]any, transaction.MaxBatchSize+1)
	for i := range over {
		over[i] = validRecord()
	}
	if _, err := svc.DecideBatch(context.Background(), over); !errors.Is(err, transaction.ErrBatchTooLarge) {
		t.Errorf("oversized batch: expected ErrBatchTooLarge, got %v", err)
	}
}

func TestService_DecideBatch_NoThresholdIsBatchWide(t *testing.T) {
	svc := NewService(model.ConstantScorer{P: 0.5}, threshold.NewCell(nil), nil, testLogger())

	_, err := svc.DecideBatch(context.Background(), []map[string]any{validRecord()})
	if !errors.Is(err, threshold.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured for the whole batch, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Memory store
// ---------------------------------------------------------------------------

func TestMemoryStore_NewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d := &Decision{ID: fmt.Sprintf("TXN-%012d", i), Score: 0.5, RiskTier: TierMedium}
		if err := store.Record(ctx, d); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := store.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(got))
	}
	if got[0].ID != "TXN-000000000004" || got[2].ID != "TXN-000000000002" {
		t.Errorf("expected newest first, got %s .. %s", got[0].ID, got[2].ID)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	d := &Decision{ID: "TXN-000000000001", Score: 0.5}
	if err := store.Record(ctx, d); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, _ := store.ListRecent(ctx, 1)
	got[0].Score = 0.99

	again, _ := store.ListRecent(ctx, 1)
	if again[0].Score != 0.5 {
		t.Error("mutating a listed decision should not affect the store")
	}
}
