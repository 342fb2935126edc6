package features

import (
	"strings"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// CappedFields are winsorized to their reference [p1, p99] bounds.
var CappedFields = []string{
	"monthly_charges",
	"total_charges",
	"avg_call_minutes",
	"avg_data_usage_gb",
	"support_ticket_count",
	"late_payments",
}

// Impute fills nullable fields and normalizes categorical text.
// Missing support, usage and billing values mean no activity and become 0.
// A missing total_charges is taken as monthly_charges * tenure_months.
func Impute(raw domain.RawAccountRecord) domain.CleanedRecord {
	total := raw.MonthlyCharges * float64(raw.TenureMonths)
	if raw.TotalCharges != nil {
		total = *raw.TotalCharges
	}

	return domain.CleanedRecord{
		CustomerID:             raw.CustomerID,
		TenureMonths:           raw.TenureMonths,
		MonthlyCharges:         raw.MonthlyCharges,
		TotalCharges:           total,
		ContractType:           normalize(raw.ContractType),
		PaymentMethod:          normalize(raw.PaymentMethod),
		SupportTicketCount:     orZero(raw.SupportTicketCount),
		AvgResolutionTime:      orZero(raw.AvgResolutionTime),
		AvgSatisfactionScore:   orZero(raw.AvgSatisfactionScore),
		AvgCallMinutes:         orZero(raw.AvgCallMinutes),
		AvgDataUsageGB:         orZero(raw.AvgDataUsageGB),
		LatePayments:           orZero(raw.LatePayments),
		HasOnlineSecurity:      raw.HasOnlineSecurity,
		HasTechSupport:         raw.HasTechSupport,
		StreamingServicesCount: raw.StreamingServicesCount,
	}
}

// Cap winsorizes the capped fields in place. Fields without a reference
// bound are left untouched.
func Cap(rec *domain.CleanedRecord, stats domain.ReferenceStats) {
	for _, name := range CappedFields {
		b, ok := stats.Bounds[name]
		if !ok {
			continue
		}
		p := cappedField(rec, name)
		*p = min(max(*p, b.Lower), b.Upper)
	}
}

// Clean imputes then caps a single record.
func Clean(raw domain.RawAccountRecord, stats domain.ReferenceStats) domain.CleanedRecord {
	rec := Impute(raw)
	Cap(&rec, stats)
	return rec
}

// Labeled pairs a cleaned record with its training label.
type Labeled struct {
	Record domain.CleanedRecord
	Label  int
}

// CleanTraining drops rows whose label is missing or not in {0,1} and
// cleans the rest.
func CleanTraining(raws []domain.RawAccountRecord, stats domain.ReferenceStats) []Labeled {
	out := make([]Labeled, 0, len(raws))
	for _, raw := range raws {
		label, ok := validLabel(raw.Churn)
		if !ok {
			continue
		}
		out = append(out, Labeled{Record: Clean(raw, stats), Label: label})
	}
	return out
}

func validLabel(churn *int) (int, bool) {
	if churn == nil || (*churn != 0 && *churn != 1) {
		return 0, false
	}
	return *churn, true
}

func cappedField(rec *domain.CleanedRecord, name string) *float64 {
	switch name {
	case "monthly_charges":
		return &rec.MonthlyCharges
	case "total_charges":
		return &rec.TotalCharges
	case "avg_call_minutes":
		return &rec.AvgCallMinutes
	case "avg_data_usage_gb":
		return &rec.AvgDataUsageGB
	case "support_ticket_count":
		return &rec.SupportTicketCount
	case "late_payments":
		return &rec.LatePayments
	}
	panic("features: unknown capped field " + name)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
