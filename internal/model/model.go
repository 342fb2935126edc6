// Package model binds persisted model artifacts to scoring functions.
package model

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
	"github.com/opensource-finance/churnguard/internal/policy"
)

// Scorer is a fitted classifier's probability output for the positive
// (churn) class. Implementations must be deterministic and safe for
// concurrent use.
type Scorer interface {
	PredictProbability(vec domain.FeatureVector) (float64, error)
	Features() []string
}

// Model is a scorer bound to its artifact metadata and feature schema.
// It is immutable once built.
type Model struct {
	Artifact *domain.ModelArtifact
	Schema   features.Schema
	Scorer   Scorer
	LoadedAt time.Time
}

// Threshold returns the decision cut-point frozen into the artifact.
func (m *Model) Threshold() float64 {
	return m.Artifact.Threshold
}

// Info returns operator-facing metadata.
func (m *Model) Info() domain.ModelInfo {
	return domain.ModelInfo{
		Name:        m.Artifact.Name,
		Version:     m.Artifact.Version,
		Kind:        m.Artifact.Kind,
		Schema:      m.Schema.Name,
		Features:    slices.Clone(m.Artifact.Features),
		Threshold:   m.Artifact.Threshold,
		Description: m.Artifact.Description,
		CreatedAt:   m.Artifact.CreatedAt,
		LoadedAt:    m.LoadedAt.UTC().Format(time.RFC3339),
	}
}

// Build validates an artifact against the configured schema and returns a
// ready model. A feature list that differs from the schema yields a
// *domain.ContractError.
func Build(a *domain.ModelArtifact, schemaName string) (*Model, error) {
	if a == nil {
		return nil, fmt.Errorf("artifact is required")
	}
	if a.Name == "" {
		return nil, fmt.Errorf("artifact name is required")
	}
	if err := policy.CheckThreshold(a.Threshold); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
	}

	schema, err := features.SchemaByName(schemaName)
	if err != nil {
		return nil, err
	}
	if a.Schema != "" && a.Schema != schema.Name {
		return nil, &domain.ContractError{
			Schema:   schema.Name,
			Expected: a.Features,
			Got:      schema.Names(),
			Detail:   fmt.Sprintf("artifact was trained on schema %q", a.Schema),
		}
	}
	if len(a.Features) == 0 {
		return nil, fmt.Errorf("artifact %s: feature list is empty", a.Name)
	}
	if err := features.CheckContract(schema, a.Features); err != nil {
		return nil, err
	}

	var scorer Scorer
	switch a.Kind {
	case domain.ModelKindLogistic, "":
		scorer, err = NewLogistic(a, schema)
	case domain.ModelKindExpression:
		scorer, err = NewExpression(a, schema)
	default:
		err = fmt.Errorf("unsupported model kind: %s", a.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", a.Name, err)
	}

	return &Model{
		Artifact: a,
		Schema:   schema,
		Scorer:   scorer,
		LoadedAt: time.Now(),
	}, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func checkVector(vec domain.FeatureVector, want []string) error {
	if len(vec) != len(want) {
		return fmt.Errorf("expected %d features, got %d", len(want), len(vec))
	}
	for i, f := range vec {
		if f.Name != want[i] {
			return fmt.Errorf("feature %d: expected %q, got %q", i, want[i], f.Name)
		}
	}
	return nil
}
