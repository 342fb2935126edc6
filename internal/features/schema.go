// Package features turns raw account records into the ordered feature
// vectors a churn model consumes.
package features

import (
	"fmt"
	"slices"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// Schema names.
const (
	SchemaDeployment = "deployment"
	SchemaTraining   = "training"
)

// Column is one named, typed input of a schema.
type Column struct {
	Name string
	Kind domain.FeatureKind
}

// Schema is an ordered feature contract.
type Schema struct {
	Name    string
	Columns []Column
}

// Names returns the column names in contract order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Kind returns the kind of the named column.
func (s Schema) Kind(name string) (domain.FeatureKind, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Kind, true
		}
	}
	return "", false
}

func num(name string) Column { return Column{Name: name, Kind: domain.FeatureNumeric} }
func cat(name string) Column { return Column{Name: name, Kind: domain.FeatureCategorical} }

// Deployment is the seven-field schema served over HTTP.
var Deployment = Schema{
	Name: SchemaDeployment,
	Columns: []Column{
		num("tenure_months"),
		cat("contract_type"),
		num("monthly_charges"),
		cat("payment_method"),
		num("support_ticket_count"),
		num("avg_call_minutes"),
		num("avg_data_usage_gb"),
	},
}

// Training is the full engineered schema used for retraining and batch
// evaluation. Numerics come first, then categoricals.
var Training = Schema{
	Name: SchemaTraining,
	Columns: []Column{
		num("tenure_months"),
		num("monthly_charges"),
		num("total_charges"),
		num("late_payments"),
		num("avg_call_minutes"),
		num("avg_data_usage_gb"),
		num("support_ticket_count"),
		num("avg_resolution_time"),
		num("avg_satisfaction_score"),
		num("charges_per_month"),
		num("engagement_score"),
		num("cx_risk_score"),
		num("stickiness_score"),
		cat("contract_type"),
		cat("payment_method"),
		cat("tenure_bucket"),
	},
}

// SchemaByName resolves a configured schema name.
func SchemaByName(name string) (Schema, error) {
	switch name {
	case SchemaDeployment, "":
		return Deployment, nil
	case SchemaTraining:
		return Training, nil
	default:
		return Schema{}, fmt.Errorf("unknown feature schema: %s", name)
	}
}

// CheckContract verifies that a model's expected feature list is exactly
// the schema's, order included.
func CheckContract(s Schema, expected []string) error {
	got := s.Names()
	if slices.Equal(expected, got) {
		return nil
	}

	detail := fmt.Sprintf("model expects %d features, deriver produces %d", len(expected), len(got))
	for i := 0; i < min(len(expected), len(got)); i++ {
		if expected[i] != got[i] {
			detail = fmt.Sprintf("position %d: model expects %q, deriver produces %q", i, expected[i], got[i])
			break
		}
	}
	return &domain.ContractError{
		Schema:   s.Name,
		Expected: expected,
		Got:      got,
		Detail:   detail,
	}
}
