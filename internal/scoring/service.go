// Package scoring runs the validate, derive, score, classify and decide
// pipeline for a single account.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
	"github.com/opensource-finance/churnguard/internal/model"
	"github.com/opensource-finance/churnguard/internal/policy"
	"github.com/opensource-finance/churnguard/internal/validate"
)

var tracer = otel.Tracer("churnguard-scoring")

// ModelSource yields the currently bound model.
type ModelSource interface {
	Current() (*model.Model, error)
}

// Service scores accounts against the bound model. Besides the read-only
// model source it holds no state and is safe for concurrent use.
type Service struct {
	models  ModelSource
	deriver *features.Deriver
}

// NewService creates a scoring service.
func NewService(models ModelSource, deriver *features.Deriver) *Service {
	return &Service{models: models, deriver: deriver}
}

// Score validates a deployment request and scores it. Validation failures
// are *domain.ValidationError, a missing model is
// *domain.ModelUnavailableError and model failures are *domain.ScoringError.
func (s *Service) Score(ctx context.Context, req domain.ScoreRequest) (*domain.ScoringResult, error) {
	if err := validate.Request(req); err != nil {
		return nil, err
	}

	m, err := s.models.Current()
	if err != nil {
		return nil, err
	}
	return s.scoreWith(ctx, m, req)
}

// scoreWith scores an already validated request against one model snapshot.
func (s *Service) scoreWith(ctx context.Context, m *model.Model, req domain.ScoreRequest) (*domain.ScoringResult, error) {
	_, span := tracer.Start(ctx, "scoring.Score")
	defer span.End()

	vec, err := s.deriver.RequestVector(m.Schema, req)
	if err != nil {
		return nil, s.fail(span, m, err)
	}

	return s.finish(span, m, vec)
}

// ScoreRecord scores a raw batch record with the bound model. A deployment
// model sees the record imputed and normalized but never capped, and the
// same validator as Score applies. A training model gets the full cleaning
// and engineering pipeline.
func (s *Service) ScoreRecord(ctx context.Context, raw domain.RawAccountRecord) (*domain.ScoringResult, error) {
	m, err := s.models.Current()
	if err != nil {
		return nil, err
	}

	if m.Schema.Name == features.SchemaDeployment {
		req, err := validate.Record(features.Impute(raw))
		if err != nil {
			return nil, err
		}
		return s.scoreWith(ctx, m, req)
	}

	_, span := tracer.Start(ctx, "scoring.ScoreRecord")
	defer span.End()

	vec, err := s.deriver.Vector(m.Schema, s.deriver.Derive(raw))
	if err != nil {
		return nil, s.fail(span, m, err)
	}

	return s.finish(span, m, vec)
}

func (s *Service) finish(span trace.Span, m *model.Model, vec domain.FeatureVector) (*domain.ScoringResult, error) {
	p, err := predict(m.Scorer, vec)
	if err != nil {
		return nil, s.fail(span, m, err)
	}

	tier, action := policy.Classify(p)
	result := &domain.ScoringResult{
		Probability:  p,
		Tier:         tier,
		Action:       action,
		Decision:     policy.Decide(p, m.Threshold()),
		Threshold:    m.Threshold(),
		ModelName:    m.Artifact.Name,
		ModelVersion: m.Artifact.Version,
	}

	span.SetAttributes(
		attribute.Float64("churn.probability", p),
		attribute.String("churn.tier", string(tier)),
		attribute.Int("churn.decision", result.Decision),
		attribute.String("model.version", m.Artifact.Version),
	)
	return result, nil
}

func (s *Service) fail(span trace.Span, m *model.Model, err error) error {
	serr := &domain.ScoringError{Model: m.Artifact.Name, Err: err}
	span.RecordError(serr)
	span.SetStatus(codes.Error, "scoring failed")
	return serr
}

// predict calls the scorer and rejects panics and outputs outside [0, 1].
func predict(scorer model.Scorer, vec domain.FeatureVector) (p float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()

	p, err = scorer.PredictProbability(vec)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("model returned probability %v outside [0, 1]", p)
	}
	return p, nil
}

// ErrorKind names an error for metrics and logs.
func ErrorKind(err error) string {
	var verr *domain.ValidationError
	var serr *domain.ScoringError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.As(err, &serr):
		return "scoring"
	default:
		return "internal"
	}
}
