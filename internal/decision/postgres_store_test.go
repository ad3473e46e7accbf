package decision

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bedaniele0/fraud-detection/internal/testutil"
)

func TestPostgresStore_RecordAndList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)

	d := &Decision{
		ID:            "TXN-0123456789AB",
		Score:         0.923456789,
		IsFraud:       true,
		RiskTier:      TierHigh,
		ThresholdUsed: 0.5,
		ModelVersion:  "1.2.0",
		EvaluatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := store.Record(ctx, d); err != nil {
		t.Fatalf("Record: %v", err)
	}

	list, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 decision, got %d", len(list))
	}

	got := list[0]
	if got.ID != d.ID {
		t.Errorf("Expected ID %s, got %s", d.ID, got.ID)
	}
	if got.Score != d.Score {
		t.Errorf("Expected score %v, got %v", d.Score, got.Score)
	}
	if !got.IsFraud {
		t.Error("Expected is_fraud true")
	}
	if got.RiskTier != TierHigh {
		t.Errorf("Expected tier high, got %s", got.RiskTier)
	}
	if got.ModelVersion != "1.2.0" {
		t.Errorf("Expected model version 1.2.0, got %s", got.ModelVersion)
	}
	if !got.EvaluatedAt.Equal(d.EvaluatedAt) {
		t.Errorf("Expected evaluated_at %v, got %v", d.EvaluatedAt, got.EvaluatedAt)
	}
}

func TestPostgresStore_ListRecentOrderAndLimit(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		d := &Decision{
			ID:            fmt.Sprintf("TXN-%012X", i),
			Score:         0.1,
			IsFraud:       false,
			RiskTier:      TierLow,
			ThresholdUsed: 0.5,
			EvaluatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := store.Record(ctx, d); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	list, err := store.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 decisions, got %d", len(list))
	}

	// Newest first
	if list[0].ID != "TXN-000000000004" {
		t.Errorf("Expected newest decision first, got %s", list[0].ID)
	}
	for i := 1; i < len(list); i++ {
		if list[i].EvaluatedAt.After(list[i-1].EvaluatedAt) {
			t.Errorf("Decisions out of order at index %d", i)
		}
	}
}

func TestPostgresStore_NullModelVersion(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)

	d := &Decision{
		ID:            "TXN-FFFFFFFFFFFF",
		Score:         0.2,
		IsFraud:       false,
		RiskTier:      TierLow,
		ThresholdUsed: 0.5,
		EvaluatedAt:   time.Now().UTC(),
	}
	if err := store.Record(ctx, d); err != nil {
		t.Fatalf("Record: %v", err)
	}

	list, err := store.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 decision, got %d", len(list))
	}
	if list[0].ModelVersion != "" {
		t.Errorf("Expected empty model version, got %q", list[0].ModelVersion)
	}
}

func TestPostgresStore_DuplicateIDRejected(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPostgresStore(db)

	d := &Decision{
		ID:            "TXN-AAAAAAAAAAAA",
		Score:         0.5,
		IsFraud:       true,
		RiskTier:      TierMedium,
		ThresholdUsed: 0.5,
		EvaluatedAt:   time.Now().UTC(),
	}
	if err := store.Record(ctx, d); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, d); err == nil {
		t.Error("Expected duplicate transaction ID to violate the primary key")
	}
}
