package decision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bedaniele0/fraud-detection/internal/idgen"
	"github.com/bedaniele0/fraud-detection/internal/metrics"
	"github.com/bedaniele0/fraud-detection/internal/model"
	"github.com/bedaniele0/fraud-detection/internal/threshold"
	"github.com/bedaniele0/fraud-detection/internal/traces"
	"github.com/bedaniele0/fraud-detection/internal/transaction"
)

// ErrModelNotLoaded is returned when no score provider is configured.
var ErrModelNotLoaded = errors.New("no model loaded")

// Events receives evaluated decisions for live streaming. Implementations
// must not block the decision path.
type Events interface {
	DecisionEvaluated(d *Decision)
}

// Observer receives every served score for drift monitoring.
type Observer interface {
	ObserveDecision(v transaction.Vector, score float64)
}

// Service coordinates validation, scoring, and threshold comparison for the
// decision endpoints.
type Service struct {
	scorer   model.Scorer
	cell     *threshold.Cell
	store    Store    // nil disables the audit trail
	events   Events   // nil disables streaming
	observer Observer // nil disables drift sampling
	logger   *slog.Logger
}

// NewService creates a decision service. Store, events, and observer are
// optional collaborators.
func NewService(scorer model.Scorer, cell *threshold.Cell, store Store, logger *slog.Logger) *Service {
	return &Service{
		scorer: scorer,
		cell:   cell,
		store:  store,
		logger: logger,
	}
}

// WithEvents attaches a streaming sink.
func (s *Service) WithEvents(events Events) *Service {
	s.events = events
	return s
}

// WithObserver attaches a drift observer.
func (s *Service) WithObserver(obs Observer) *Service {
	s.observer = obs
	return s
}

// DecideOne validates one record, scores it, and evaluates it against the
// active threshold. Validation errors are returned as *transaction.FieldError;
// an unconfigured threshold as threshold.ErrNotConfigured.
func (s *Service) DecideOne(ctx context.Context, record map[string]any) (*Decision, error) {
	vec, err := transaction.ValidateSingle(record)
	if err != nil {
		var fe *transaction.FieldError
		if errors.As(err, &fe) {
			metrics.ValidationFailuresTotal.WithLabelValues(fe.Reason).Inc()
		}
		return nil, err
	}
	return s.decideVector(ctx, vec)
}

// BatchItem is one positional result of a batch evaluation: either a
// decision or a validation error, never both.
type BatchItem struct {
	Index    int                     `json:"index"`
	Decision *Decision               `json:"decision,omitempty"`
	Error    *transaction.FieldError `json:"error,omitempty"`
}

// BatchStats summarizes the decided (valid) portion of a batch.
type BatchStats struct {
	TotalTransactions int     `json:"total_transactions"`
	FraudCount        int     `json:"fraud_count"`
	FraudRate         float64 `json:"fraud_rate"`
	ProcessingTime    float64 `json:"processing_time"`
}

// BatchOutcome carries ordered per-record results plus batch statistics.
type BatchOutcome struct {
	Items []BatchItem `json:"results"`
	Stats BatchStats  `json:"statistics"`
}

// DecideBatch evaluates up to MaxBatchSize records, preserving input order.
// Invalid records surface as positional errors while the rest of the batch
// is still decided. Size violations reject the whole batch.
func (s *Service) DecideBatch(ctx context.Context, records []map[string]any) (*BatchOutcome, error) {
	started := time.Now()

	ctx, span := traces.StartSpan(ctx, "decision.batch", traces.BatchSize(len(records)))
	defer span.End()

	validated, err := transaction.ValidateBatch(records)
	if err != nil {
		return nil, err
	}

	metrics.BatchSize.Observe(float64(len(records)))

	outcome := &BatchOutcome{Items: make([]BatchItem, len(validated))}
	for i, vr := range validated {
		item := BatchItem{Index: vr.Index}
		if vr.Err != nil {
			metrics.ValidationFailuresTotal.WithLabelValues(vr.Err.Reason).Inc()
			item.Error = vr.Err
			outcome.Items[i] = item
			continue
		}

		d, err := s.decideVector(ctx, vr.Vector)
		if err != nil {
			// Threshold and model failures are batch-wide: every remaining
			// record would fail the same way.
			return nil, err
		}
		item.Decision = d
		outcome.Items[i] = item

		outcome.Stats.TotalTransactions++
		if d.IsFraud {
			outcome.Stats.FraudCount++
		}
	}

	if outcome.Stats.TotalTransactions > 0 {
		outcome.Stats.FraudRate = float64(outcome.Stats.FraudCount) / float64(outcome.Stats.TotalTransactions)
	}
	outcome.Stats.ProcessingTime = time.Since(started).Seconds()
	return outcome, nil
}

// decideVector runs the scoring and comparison path shared by single and
// batch evaluation.
func (s *Service) decideVector(ctx context.Context, vec transaction.Vector) (*Decision, error) {
	ctx, span := traces.StartSpan(ctx, "decision.evaluate")
	defer span.End()

	if s.scorer == nil {
		return nil, ErrModelNotLoaded
	}

	snap, err := s.cell.Get()
	if err != nil {
		return nil, err
	}

	score, err := s.scorer.Score(ctx, vec)
	if err != nil {
		return nil, err
	}

	d, err := Decide(score, snap.Value)
	if err != nil {
		return nil, err
	}
	d.ID = idgen.Transaction()
	d.ModelVersion = s.scorer.Info().Version
	d.EvaluatedAt = time.Now().UTC()

	span.SetAttributes(
		traces.TransactionID(d.ID),
		traces.Score(d.Score),
		traces.Threshold(d.ThresholdUsed),
		traces.RiskTier(string(d.RiskTier)),
	)

	s.publish(vec, d)
	return d, nil
}

// publish fans a decision out to metrics, the audit trail, drift sampling,
// and the event stream. All of it is off the request's critical contract:
// best-effort, never an error to the caller.
func (s *Service) publish(vec transaction.Vector, d *Decision) {
	outcome := "legit"
	if d.IsFraud {
		outcome = "fraud"
	}
	metrics.DecisionsTotal.WithLabelValues(outcome, string(d.RiskTier)).Inc()
	metrics.DecisionScores.Observe(d.Score)

	if s.observer != nil {
		s.observer.ObserveDecision(vec, d.Score)
	}

	if s.store != nil {
		recorded := *d
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.Record(ctx, &recorded); err != nil {
				s.logger.Warn("decision audit write failed", "id", recorded.ID, "error", err)
			}
		}()
	}

	if s.events != nil {
		s.events.DecisionEvaluated(d)
	}
}

// ListRecent returns the most recent audited decisions, newest first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Decision, error) {
	if s.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListRecent(ctx, limit)
}

// ModelInfo exposes the loaded model's metadata, or ErrModelNotLoaded.
func (s *Service) ModelInfo() (model.Info, error) {
	if s.scorer == nil {
		return model.Info{}, ErrModelNotLoaded
	}
	return s.scorer.Info(), nil
}

// ThresholdSnapshot returns the active threshold snapshot, or
// threshold.ErrNotConfigured.
func (s *Service) ThresholdSnapshot() (*threshold.Snapshot, error) {
	return s.cell.Get()
}
