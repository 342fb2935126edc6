package features

import (
	"fmt"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// Deriver cleans, engineers and vectorizes records against frozen
// reference statistics. It holds no mutable state and is safe for
// concurrent use.
type Deriver struct {
	stats domain.ReferenceStats
}

// NewDeriver creates a deriver bound to the given reference statistics.
func NewDeriver(stats domain.ReferenceStats) *Deriver {
	return &Deriver{stats: stats}
}

// Stats returns the reference statistics the deriver was built with.
func (d *Deriver) Stats() domain.ReferenceStats {
	return d.stats
}

// Derive runs the full cleaning and engineering pipeline on a raw record.
func (d *Deriver) Derive(raw domain.RawAccountRecord) domain.EngineeredRecord {
	return Engineer(Clean(raw, d.stats), d.stats.MedianMonthlyCharges)
}

// Vector extracts the schema's columns, in order, from an engineered record.
func (d *Deriver) Vector(s Schema, rec domain.EngineeredRecord) (domain.FeatureVector, error) {
	vec := make(domain.FeatureVector, 0, len(s.Columns))
	for _, c := range s.Columns {
		get, ok := columns[c.Name]
		if !ok {
			return nil, fmt.Errorf("no derivation for feature %q", c.Name)
		}
		f := get(&rec)
		if f.Kind != c.Kind {
			return nil, fmt.Errorf("feature %q is %s, schema wants %s", c.Name, f.Kind, c.Kind)
		}
		vec = append(vec, f)
	}
	return vec, nil
}

// RequestVector builds the vector for a validated deployment request.
// The deployment schema consumes the request fields as given; wider
// schemas run the request through the full pipeline.
func (d *Deriver) RequestVector(s Schema, req domain.ScoreRequest) (domain.FeatureVector, error) {
	if s.Name == SchemaDeployment {
		return deploymentVector(req), nil
	}
	return d.Vector(s, d.Derive(req.ToRaw()))
}

func deploymentVector(req domain.ScoreRequest) domain.FeatureVector {
	return domain.FeatureVector{
		numFeature("tenure_months", float64(req.TenureMonths)),
		catFeature("contract_type", req.ContractType),
		numFeature("monthly_charges", req.MonthlyCharges),
		catFeature("payment_method", req.PaymentMethod),
		numFeature("support_ticket_count", float64(req.SupportTicketCount)),
		numFeature("avg_call_minutes", req.AvgCallMinutes),
		numFeature("avg_data_usage_gb", req.AvgDataUsageGB),
	}
}

func numFeature(name string, v float64) domain.Feature {
	return domain.Feature{Name: name, Kind: domain.FeatureNumeric, Num: v}
}

func catFeature(name, v string) domain.Feature {
	return domain.Feature{Name: name, Kind: domain.FeatureCategorical, Cat: v}
}

type columnFunc func(*domain.EngineeredRecord) domain.Feature

func numCol(name string, get func(*domain.EngineeredRecord) float64) columnFunc {
	return func(r *domain.EngineeredRecord) domain.Feature { return numFeature(name, get(r)) }
}

func catCol(name string, get func(*domain.EngineeredRecord) string) columnFunc {
	return func(r *domain.EngineeredRecord) domain.Feature { return catFeature(name, get(r)) }
}

var columns = map[string]columnFunc{
	"tenure_months":          numCol("tenure_months", func(r *domain.EngineeredRecord) float64 { return float64(r.TenureMonths) }),
	"monthly_charges":        numCol("monthly_charges", func(r *domain.EngineeredRecord) float64 { return r.MonthlyCharges }),
	"total_charges":          numCol("total_charges", func(r *domain.EngineeredRecord) float64 { return r.TotalCharges }),
	"late_payments":          numCol("late_payments", func(r *domain.EngineeredRecord) float64 { return r.LatePayments }),
	"avg_call_minutes":       numCol("avg_call_minutes", func(r *domain.EngineeredRecord) float64 { return r.AvgCallMinutes }),
	"avg_data_usage_gb":      numCol("avg_data_usage_gb", func(r *domain.EngineeredRecord) float64 { return r.AvgDataUsageGB }),
	"support_ticket_count":   numCol("support_ticket_count", func(r *domain.EngineeredRecord) float64 { return r.SupportTicketCount }),
	"avg_resolution_time":    numCol("avg_resolution_time", func(r *domain.EngineeredRecord) float64 { return r.AvgResolutionTime }),
	"avg_satisfaction_score": numCol("avg_satisfaction_score", func(r *domain.EngineeredRecord) float64 { return r.AvgSatisfactionScore }),
	"charges_per_month":      numCol("charges_per_month", func(r *domain.EngineeredRecord) float64 { return r.ChargesPerMonth }),
	"high_price_flag":        numCol("high_price_flag", func(r *domain.EngineeredRecord) float64 { return float64(r.HighPriceFlag) }),
	"engagement_score":       numCol("engagement_score", func(r *domain.EngineeredRecord) float64 { return r.EngagementScore }),
	"cx_risk_score":          numCol("cx_risk_score", func(r *domain.EngineeredRecord) float64 { return r.CXRiskScore }),
	"payment_risk":           numCol("payment_risk", func(r *domain.EngineeredRecord) float64 { return float64(r.PaymentRisk) }),
	"stickiness_score":       numCol("stickiness_score", func(r *domain.EngineeredRecord) float64 { return r.StickinessScore }),
	"contract_type":          catCol("contract_type", func(r *domain.EngineeredRecord) string { return r.ContractType }),
	"payment_method":         catCol("payment_method", func(r *domain.EngineeredRecord) string { return r.PaymentMethod }),
	"tenure_bucket":          catCol("tenure_bucket", func(r *domain.EngineeredRecord) string { return r.TenureBucket }),
}
