package drift

import (
	"sync"
	"time"

	"github.com/bedaniele0/fraud-detection/internal/transaction"
)

// Monitored feature names. Scores are monitored alongside the two raw
// fields that carry interpretable units.
const (
	FeatureScore  = "score"
	FeatureAmount = "Amount"
	FeatureTime   = "Time"
)

// Window sizing.
const (
	// DefaultWindowSize caps the live sample ring per feature.
	DefaultWindowSize = 5000
	// MinSamples is the minimum live window before PSI is reported.
	MinSamples = 100
)

// FeatureReport is the drift verdict for one monitored feature.
type FeatureReport struct {
	PSI      float64  `json:"psi"`
	Severity Severity `json:"severity"`
	Samples  int      `json:"samples"`
}

// Report is a point-in-time drift summary across monitored features.
type Report struct {
	Status      Severity                 `json:"status"`
	Features    map[string]FeatureReport `json:"features"`
	WindowSize  int                      `json:"window_size"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// ring is a fixed-capacity sample buffer; old samples are overwritten.
type ring struct {
	buf  []float64
	next int
	full bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) snapshot() []float64 {
	if r.full {
		out := make([]float64, len(r.buf))
		copy(out, r.buf)
		return out
	}
	out := make([]float64, r.next)
	copy(out, r.buf[:r.next])
	return out
}

// Monitor accumulates live samples from served decisions and compares them
// against reference distributions captured at calibration time.
//
// It implements the decision service's Observer hook; ObserveDecision is on
// the scoring path and must stay cheap.
type Monitor struct {
	mu        sync.RWMutex
	reference map[string][]float64
	current   map[string]*ring
	window    int
}

// NewMonitor creates a drift monitor with the default window size.
func NewMonitor() *Monitor {
	return &Monitor{
		reference: make(map[string][]float64),
		current: map[string]*ring{
			FeatureScore:  newRing(DefaultWindowSize),
			FeatureAmount: newRing(DefaultWindowSize),
			FeatureTime:   newRing(DefaultWindowSize),
		},
		window: DefaultWindowSize,
	}
}

// SetReference installs the reference sample for one feature, replacing any
// previous one. Call once per feature after calibration.
func (m *Monitor) SetReference(feature string, samples []float64) {
	copied := make([]float64, len(samples))
	copy(copied, samples)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reference[feature] = copied
}

// ObserveDecision records one served decision into the live windows.
func (m *Monitor) ObserveDecision(v transaction.Vector, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[FeatureScore].push(score)
	if len(v) > 0 {
		m.current[FeatureAmount].push(v.Amount())
		m.current[FeatureTime].push(v.Time())
	}
}

// Snapshot computes the current drift report. Features without a reference
// or with fewer than MinSamples live samples are reported with zero PSI and
// severity none.
func (m *Monitor) Snapshot() *Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := &Report{
		Status:      SeverityNone,
		Features:    make(map[string]FeatureReport, len(m.current)),
		WindowSize:  m.window,
		GeneratedAt: time.Now().UTC(),
	}

	for feature, r := range m.current {
		live := r.snapshot()
		fr := FeatureReport{Severity: SeverityNone, Samples: len(live)}

		ref := m.reference[feature]
		if len(ref) > 0 && len(live) >= MinSamples {
			fr.PSI = PSI(ref, live)
			fr.Severity = Classify(fr.PSI)
		}
		report.Features[feature] = fr

		if worse(fr.Severity, report.Status) {
			report.Status = fr.Severity
		}
	}
	return report
}

// worse reports whether a outranks b.
func worse(a, b Severity) bool {
	return rank(a) > rank(b)
}

func rank(s Severity) int {
	switch s {
	case SeveritySignificant:
		return 2
	case SeverityModerate:
		return 1
	default:
		return 0
	}
}
