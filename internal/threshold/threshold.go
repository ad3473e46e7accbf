// Package threshold holds the single live decision threshold and its
// provenance, and allows atomic replacement while decisions are being
// served.
//
// The cell starts unconfigured; it becomes active on the first Set or
// Commit and stays active for the process lifetime. Readers never block and
// never observe a partially-written value: the snapshot is swapped through
// an atomic pointer.
package threshold

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bedaniele0/fraud-detection/internal/calibration"
)

var (
	// ErrNotConfigured is returned while no threshold has been set. Decision
	// requests must be rejected until an operator or a calibration run
	// configures one.
	ErrNotConfigured = errors.New("no threshold configured")
	// ErrInvalidThreshold is returned for values outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be in [0, 1]")
)

// Source records how a snapshot came to be adopted.
type Source string

const (
	SourceManual      Source = "manual"
	SourceCalibration Source = "calibration"
)

// Snapshot is one adopted threshold value plus its provenance. Immutable
// after adoption.
type Snapshot struct {
	Value       float64             `json:"threshold"`
	Source      Source              `json:"source"`
	Calibration *calibration.Result `json:"calibration,omitempty"`
	AdoptedAt   time.Time           `json:"adopted_at"`
}

// Store persists adopted snapshots so a restarted process resumes from the
// last committed threshold instead of starting unconfigured.
type Store interface {
	// Save records a newly adopted snapshot.
	Save(ctx context.Context, snap *Snapshot) error
	// Load returns the most recently saved snapshot, or (nil, nil) when
	// nothing has been saved yet.
	Load(ctx context.Context) (*Snapshot, error)
}

// Cell is the process-wide threshold holder. Get is lock-free; writers are
// serialized so persistence order matches adoption order.
type Cell struct {
	current atomic.Pointer[Snapshot]
	store   Store // nil disables persistence
	writeMu sync.Mutex
}

// NewCell creates an unconfigured cell backed by the given store.
// A nil store keeps the threshold in memory only.
func NewCell(store Store) *Cell {
	return &Cell{store: store}
}

// Restore loads the last persisted snapshot, if any, and activates it.
// Called once at startup, before the cell is shared.
func (c *Cell) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snap, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	if snap != nil {
		c.current.Store(snap)
	}
	return nil
}

// Active reports whether a threshold has been configured.
func (c *Cell) Active() bool {
	return c.current.Load() != nil
}

// Get returns the currently active snapshot. Two calls without an
// intervening Set/Commit return the identical snapshot.
func (c *Cell) Get() (*Snapshot, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, ErrNotConfigured
	}
	return snap, nil
}

// Set adopts a manually chosen threshold value. Authorization is the
// caller's concern.
func (c *Cell) Set(ctx context.Context, value float64) (*Snapshot, error) {
	if value < 0 || value > 1 {
		return nil, ErrInvalidThreshold
	}
	snap := &Snapshot{
		Value:     value,
		Source:    SourceManual,
		AdoptedAt: time.Now().UTC(),
	}
	return snap, c.adopt(ctx, snap)
}

// Commit adopts the threshold proposed by a calibration run, keeping the
// full result as provenance so later audits can see precision/recall at
// adoption time.
func (c *Cell) Commit(ctx context.Context, result *calibration.Result) (*Snapshot, error) {
	if result == nil || result.Threshold < 0 || result.Threshold > 1 {
		return nil, ErrInvalidThreshold
	}
	snap := &Snapshot{
		Value:       result.Threshold,
		Source:      SourceCalibration,
		Calibration: result,
		AdoptedAt:   time.Now().UTC(),
	}
	return snap, c.adopt(ctx, snap)
}

// adopt persists then swaps. In-flight readers keep the old snapshot until
// the swap; a persistence failure leaves the active value unchanged.
func (c *Cell) adopt(ctx context.Context, snap *Snapshot) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, snap); err != nil {
			return err
		}
	}
	c.current.Store(snap)
	return nil
}
