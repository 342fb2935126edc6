package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/metrics"
	"github.com/opensource-finance/churnguard/internal/validate"
)

// DefaultResultTTL bounds how long a cached scoring result is reused.
const DefaultResultTTL = 10 * time.Minute

// Options wires the optional collaborators of a Processor. Nil fields
// disable that concern.
type Options struct {
	Cache     domain.Cache
	Repo      domain.Repository
	Bus       domain.EventBus
	Metrics   *metrics.Metrics
	ResultTTL time.Duration
}

// Processor wraps the scoring service with result caching, prediction
// audit, event publication and metrics. Scoring never depends on any of
// them succeeding.
type Processor struct {
	service   *Service
	cache     domain.Cache
	repo      domain.Repository
	bus       domain.EventBus
	metrics   *metrics.Metrics
	resultTTL time.Duration
}

// NewProcessor creates a processor around svc.
func NewProcessor(svc *Service, opts Options) *Processor {
	ttl := opts.ResultTTL
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &Processor{
		service:   svc,
		cache:     opts.Cache,
		repo:      opts.Repo,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		resultTTL: ttl,
	}
}

// Service returns the wrapped scoring service.
func (p *Processor) Service() *Service {
	return p.service
}

// Process scores a deployment request and records the prediction.
func (p *Processor) Process(ctx context.Context, req domain.ScoreRequest, traceID string) (*domain.Prediction, error) {
	start := time.Now()

	result, cached, err := p.score(ctx, req)
	if err != nil {
		p.metrics.ObserveFailure(ErrorKind(err))
		if errors.Is(err, domain.ErrModelUnavailable) {
			slog.Warn("scoring rejected: model unavailable", "trace_id", traceID, "error", err)
		}
		return nil, err
	}

	latency := time.Since(start)
	pred := &domain.Prediction{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		Request:   req,
		Result:    *result,
		Cached:    cached,
		LatencyMs: latency.Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}

	p.metrics.ObservePrediction(result, cached, latency)

	if p.repo != nil {
		if err := p.repo.SavePrediction(ctx, pred); err != nil {
			slog.Error("failed to save prediction", "prediction_id", pred.ID, "error", err)
		}
	}

	p.publish(ctx, pred)

	return pred, nil
}

// score resolves the model once so the cache key and the result share a version.
func (p *Processor) score(ctx context.Context, req domain.ScoreRequest) (*domain.ScoringResult, bool, error) {
	if err := validate.Request(req); err != nil {
		return nil, false, err
	}

	m, err := p.service.models.Current()
	if err != nil {
		return nil, false, err
	}

	key := ResultKey(m.Artifact.Name, m.Artifact.Version, req)
	if p.cache != nil {
		if hit, err := p.cache.GetResult(ctx, key); err != nil {
			slog.Warn("cache lookup failed", "error", err)
		} else if hit != nil {
			return hit, true, nil
		}
	}

	result, err := p.service.scoreWith(ctx, m, req)
	if err != nil {
		return nil, false, err
	}

	if p.cache != nil {
		if err := p.cache.SetResult(ctx, key, result, p.resultTTL); err != nil {
			slog.Warn("cache store failed", "error", err)
		}
	}
	return result, false, nil
}

func (p *Processor) publish(ctx context.Context, pred *domain.Prediction) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(pred)
	if err != nil {
		slog.Error("failed to encode prediction event", "prediction_id", pred.ID, "error", err)
		return
	}

	if err := p.bus.Publish(ctx, domain.TopicPrediction, payload); err != nil {
		slog.Error("failed to publish prediction", "prediction_id", pred.ID, "error", err)
	}
	if pred.Result.Tier == domain.RiskHigh {
		if err := p.bus.Publish(ctx, domain.TopicHighRisk, payload); err != nil {
			slog.Error("failed to publish high risk alert", "prediction_id", pred.ID, "error", err)
		}
	}
}

// ResultKey is the cache key for a request scored by a given model version.
func ResultKey(modelName, modelVersion string, req domain.ScoreRequest) string {
	return fmt.Sprintf("score:%s:%s:%d|%s|%g|%s|%d|%g|%g",
		modelName, modelVersion,
		req.TenureMonths, req.ContractType, req.MonthlyCharges, req.PaymentMethod,
		req.SupportTicketCount, req.AvgCallMinutes, req.AvgDataUsageGB,
	)
}
