package health

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestThresholdCheck(t *testing.T) {
	active := false
	check := ThresholdCheck(func() bool { return active })

	if err := check(context.Background()); !errors.Is(err, ErrNoThreshold) {
		t.Fatalf("expected ErrNoThreshold before calibration, got %v", err)
	}

	active = true
	if err := check(context.Background()); err != nil {
		t.Fatalf("expected healthy with an active threshold, got %v", err)
	}
}

func TestDatabaseCheck(t *testing.T) {
	pingErr := errors.New("connection refused")
	check := DatabaseCheck(func(context.Context) error { return pingErr })
	if err := check(context.Background()); !errors.Is(err, pingErr) {
		t.Fatalf("expected ping error to surface, got %v", err)
	}

	check = DatabaseCheck(func(context.Context) error { return nil })
	if err := check(context.Background()); err != nil {
		t.Fatalf("expected healthy database, got %v", err)
	}
}

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryDegradedWithoutThreshold(t *testing.T) {
	r := NewRegistry()
	r.Register("threshold", ThresholdCheck(func() bool { return false }))
	r.Register("database", DatabaseCheck(func(context.Context) error { return nil }))

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("service without a threshold should report degraded")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "threshold" || statuses[1].Name != "database" {
		t.Fatalf("expected registration order preserved, got %q then %q",
			statuses[0].Name, statuses[1].Name)
	}
	if statuses[0].Healthy || statuses[0].Detail != ErrNoThreshold.Error() {
		t.Fatalf("expected threshold status unhealthy with detail, got %+v", statuses[0])
	}
	if !statuses[1].Healthy {
		t.Fatalf("expected database status healthy, got %+v", statuses[1])
	}
}

func TestRegistryAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("threshold", ThresholdCheck(func() bool { return true }))
	r.Register("database", DatabaseCheck(func(context.Context) error { return nil }))

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("expected healthy aggregate")
	}
	for _, st := range statuses {
		if !st.Healthy || st.Detail != "" {
			t.Fatalf("expected clean status, got %+v", st)
		}
	}
}

func TestRegistryReplacesByName(t *testing.T) {
	r := NewRegistry()
	r.Register("database", DatabaseCheck(func(context.Context) error {
		return errors.New("pool exhausted")
	}))
	r.Register("database", DatabaseCheck(func(context.Context) error { return nil }))

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("replaced checker should win")
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status after replacement, got %d", len(statuses))
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("threshold", ThresholdCheck(func() bool { return true }))
		}()
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}
	wg.Wait()
}
