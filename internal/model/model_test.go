package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
)

func deploymentArtifact() *domain.ModelArtifact {
	return &domain.ModelArtifact{
		Name:      "churn_deployment",
		Version:   "v1",
		Kind:      domain.ModelKindLogistic,
		Schema:    features.SchemaDeployment,
		Features:  features.Deployment.Names(),
		Threshold: 0.42,
		Intercept: -1.2,
		Numeric: []domain.NumericCoefficient{
			{Name: "tenure_months", Mean: 32, Scale: 20, Coef: -0.9},
			{Name: "monthly_charges", Mean: 70, Scale: 28, Coef: 0.6},
			{Name: "support_ticket_count", Mean: 2, Scale: 1.6, Coef: 0.5},
			{Name: "avg_call_minutes", Mean: 140, Scale: 60, Coef: -0.15},
			{Name: "avg_data_usage_gb", Mean: 12, Scale: 7, Coef: -0.2},
		},
		Categorical: []domain.CategoricalEncoding{
			{Name: "contract_type", Categories: map[string]float64{
				"month-to-month": 0.9, "one year": -0.3, "two year": -0.9,
			}},
			{Name: "payment_method", Categories: map[string]float64{
				"electronic check": 0.45, "credit card": -0.15, "bank transfer": -0.15, "mailed check": -0.1,
			}},
		},
	}
}

func scenarioVector(t *testing.T) domain.FeatureVector {
	t.Helper()
	vec, err := features.NewDeriver(domain.ReferenceStats{}).RequestVector(features.Deployment, domain.ScoreRequest{
		TenureMonths:       3,
		ContractType:       "month-to-month",
		MonthlyCharges:     110,
		PaymentMethod:      "electronic check",
		SupportTicketCount: 2,
		AvgCallMinutes:     120,
		AvgDataUsageGB:     5,
	})
	require.NoError(t, err)
	return vec
}

func writeArtifact(t *testing.T, dir string, a *domain.ModelArtifact) string {
	t.Helper()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, SaveArtifact(path, a))
	return path
}

func TestLogisticModel(t *testing.T) {
	m, err := Build(deploymentArtifact(), features.SchemaDeployment)
	require.NoError(t, err)

	vec := scenarioVector(t)
	p, err := m.Scorer.PredictProbability(vec)
	require.NoError(t, err)

	z := -1.2 +
		-0.9*(3-32)/20.0 +
		0.6*(110-70)/28.0 +
		0.5*(2-2)/1.6 +
		-0.15*(120-140)/60.0 +
		-0.2*(5-12)/7.0 +
		0.9 + 0.45
	want := 1 / (1 + math.Exp(-z))
	assert.InDelta(t, want, p, 1e-12)

	t.Run("Deterministic", func(t *testing.T) {
		again, err := m.Scorer.PredictProbability(vec)
		require.NoError(t, err)
		assert.Equal(t, p, again)
	})

	t.Run("UnknownCategoryContributesNothing", func(t *testing.T) {
		v := scenarioVector(t)
		v[1].Cat = "weekly"
		got, err := m.Scorer.PredictProbability(v)
		require.NoError(t, err)
		assert.InDelta(t, 1/(1+math.Exp(-(z-0.9))), got, 1e-12)
	})

	t.Run("WrongOrder", func(t *testing.T) {
		v := scenarioVector(t)
		v[0], v[1] = v[1], v[0]
		_, err := m.Scorer.PredictProbability(v)
		assert.Error(t, err)
	})
}

func TestBuild(t *testing.T) {
	t.Run("BadThreshold", func(t *testing.T) {
		a := deploymentArtifact()
		a.Threshold = 1.2
		_, err := Build(a, features.SchemaDeployment)
		assert.Error(t, err)
	})

	t.Run("ContractMismatch", func(t *testing.T) {
		a := deploymentArtifact()
		a.Features = append(a.Features[1:], a.Features[0])
		_, err := Build(a, features.SchemaDeployment)
		var cerr *domain.ContractError
		assert.True(t, errors.As(err, &cerr), "expected ContractError, got %v", err)
	})

	t.Run("SchemaMismatch", func(t *testing.T) {
		_, err := Build(deploymentArtifact(), features.SchemaTraining)
		var cerr *domain.ContractError
		assert.True(t, errors.As(err, &cerr), "expected ContractError, got %v", err)
	})

	t.Run("MissingCoefficient", func(t *testing.T) {
		a := deploymentArtifact()
		a.Numeric = a.Numeric[1:]
		_, err := Build(a, features.SchemaDeployment)
		assert.ErrorContains(t, err, "tenure_months")
	})

	t.Run("UnknownKind", func(t *testing.T) {
		a := deploymentArtifact()
		a.Kind = "forest"
		_, err := Build(a, features.SchemaDeployment)
		assert.ErrorContains(t, err, "unsupported model kind")
	})

	t.Run("Info", func(t *testing.T) {
		m, err := Build(deploymentArtifact(), features.SchemaDeployment)
		require.NoError(t, err)
		info := m.Info()
		assert.Equal(t, "churn_deployment", info.Name)
		assert.Equal(t, 0.42, info.Threshold)
		assert.Equal(t, features.Deployment.Names(), info.Features)
	})
}

func TestExpressionModel(t *testing.T) {
	a := &domain.ModelArtifact{
		Name:       "churn_expr",
		Version:    "e1",
		Kind:       domain.ModelKindExpression,
		Features:   features.Deployment.Names(),
		Threshold:  0.5,
		Expression: `(contract_type == "month-to-month" ? 1.0 : -1.0) + 0.02 * (monthly_charges - 70.0) - 0.05 * tenure_months`,
		Link:       domain.LinkLogit,
	}

	m, err := Build(a, features.SchemaDeployment)
	require.NoError(t, err)

	p, err := m.Scorer.PredictProbability(scenarioVector(t))
	require.NoError(t, err)
	z := 1.0 + 0.02*40 - 0.05*3
	assert.InDelta(t, 1/(1+math.Exp(-z)), p, 1e-12)

	t.Run("IdentityLink", func(t *testing.T) {
		b := *a
		b.Expression = `monthly_charges / 200.0`
		b.Link = ""
		m, err := Build(&b, features.SchemaDeployment)
		require.NoError(t, err)
		p, err := m.Scorer.PredictProbability(scenarioVector(t))
		require.NoError(t, err)
		assert.InDelta(t, 0.55, p, 1e-12)
	})

	t.Run("CompileError", func(t *testing.T) {
		b := *a
		b.Expression = `unknown_feature * 2.0`
		_, err := Build(&b, features.SchemaDeployment)
		assert.ErrorContains(t, err, "compile")
	})

	t.Run("NonNumericOutput", func(t *testing.T) {
		b := *a
		b.Expression = `contract_type`
		_, err := Build(&b, features.SchemaDeployment)
		assert.ErrorContains(t, err, "must return")
	})
}

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, deploymentArtifact())

	got, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, deploymentArtifact(), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestHolder(t *testing.T) {
	t.Run("MissingArtifact", func(t *testing.T) {
		h := NewHolder(filepath.Join(t.TempDir(), "missing.json"), features.SchemaDeployment)
		err := h.Load()
		assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
		assert.NotContains(t, err.Error(), "missing.json")
		assert.False(t, h.Loaded())

		_, err = h.Current()
		assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
	})

	t.Run("ContractErrorSurfaces", func(t *testing.T) {
		a := deploymentArtifact()
		a.Features = a.Features[:3]
		h := NewHolder(writeArtifact(t, t.TempDir(), a), features.SchemaDeployment)
		var cerr *domain.ContractError
		assert.True(t, errors.As(h.Load(), &cerr))
	})

	t.Run("ReloadKeepsPreviousOnFailure", func(t *testing.T) {
		dir := t.TempDir()
		path := writeArtifact(t, dir, deploymentArtifact())
		h := NewHolder(path, features.SchemaDeployment)
		require.NoError(t, h.Load())

		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := h.Reload()
		assert.Error(t, err)

		m, err := h.Current()
		require.NoError(t, err)
		assert.Equal(t, "v1", m.Artifact.Version)
	})

	t.Run("ReloadSwaps", func(t *testing.T) {
		dir := t.TempDir()
		path := writeArtifact(t, dir, deploymentArtifact())
		h := NewHolder(path, features.SchemaDeployment)
		require.NoError(t, h.Load())

		next := deploymentArtifact()
		next.Version = "v2"
		next.Threshold = 0.5
		writeArtifact(t, dir, next)

		vec := scenarioVector(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if m, err := h.Current(); err == nil {
					_, _ = m.Scorer.PredictProbability(vec)
				}
			}()
		}
		m, err := h.Reload()
		wg.Wait()

		require.NoError(t, err)
		assert.Equal(t, "v2", m.Artifact.Version)
		assert.Equal(t, 0.5, m.Threshold())
	})
}
