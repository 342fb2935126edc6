package model

import (
	"fmt"
	"math"
	"slices"

	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
)

// LogisticModel is a logistic regression over standard-scaled numerics and
// one-hot encoded categoricals. Unknown categories contribute nothing.
type LogisticModel struct {
	intercept   float64
	features    []string
	numeric     map[string]domain.NumericCoefficient
	categorical map[string]map[string]float64
}

// NewLogistic builds a logistic model from artifact coefficients. Every
// schema column must have exactly one coefficient entry of matching kind.
func NewLogistic(a *domain.ModelArtifact, schema features.Schema) (*LogisticModel, error) {
	m := &LogisticModel{
		intercept:   a.Intercept,
		features:    slices.Clone(a.Features),
		numeric:     make(map[string]domain.NumericCoefficient, len(a.Numeric)),
		categorical: make(map[string]map[string]float64, len(a.Categorical)),
	}

	for _, c := range a.Numeric {
		if kind, ok := schema.Kind(c.Name); !ok || kind != domain.FeatureNumeric {
			return nil, fmt.Errorf("numeric coefficient %q is not a numeric feature of schema %s", c.Name, schema.Name)
		}
		if c.Scale <= 0 || math.IsNaN(c.Scale) {
			return nil, fmt.Errorf("numeric coefficient %q has non-positive scale", c.Name)
		}
		if _, dup := m.numeric[c.Name]; dup {
			return nil, fmt.Errorf("duplicate numeric coefficient %q", c.Name)
		}
		m.numeric[c.Name] = c
	}
	for _, c := range a.Categorical {
		if kind, ok := schema.Kind(c.Name); !ok || kind != domain.FeatureCategorical {
			return nil, fmt.Errorf("categorical encoding %q is not a categorical feature of schema %s", c.Name, schema.Name)
		}
		if _, dup := m.categorical[c.Name]; dup {
			return nil, fmt.Errorf("duplicate categorical encoding %q", c.Name)
		}
		m.categorical[c.Name] = c.Categories
	}

	for _, name := range m.features {
		_, isNum := m.numeric[name]
		_, isCat := m.categorical[name]
		if !isNum && !isCat {
			return nil, fmt.Errorf("feature %q has no coefficient", name)
		}
	}

	return m, nil
}

// Features returns the ordered inputs the model was fit on.
func (m *LogisticModel) Features() []string {
	return m.features
}

// PredictProbability returns sigmoid(intercept + w·x).
func (m *LogisticModel) PredictProbability(vec domain.FeatureVector) (float64, error) {
	if err := checkVector(vec, m.features); err != nil {
		return 0, err
	}

	z := m.intercept
	for _, f := range vec {
		switch f.Kind {
		case domain.FeatureNumeric:
			c, ok := m.numeric[f.Name]
			if !ok {
				return 0, fmt.Errorf("feature %q: numeric value for categorical input", f.Name)
			}
			z += c.Coef * (f.Num - c.Mean) / c.Scale
		case domain.FeatureCategorical:
			cats, ok := m.categorical[f.Name]
			if !ok {
				return 0, fmt.Errorf("feature %q: categorical value for numeric input", f.Name)
			}
			z += cats[f.Cat]
		default:
			return 0, fmt.Errorf("feature %q: unknown kind %q", f.Name, f.Kind)
		}
	}

	return sigmoid(z), nil
}
