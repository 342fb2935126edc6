package features

import "github.com/opensource-finance/churnguard/internal/domain"

// Engagement weights.
const (
	callWeight = 0.4
	dataWeight = 0.6
)

// maxSatisfaction is the top of the satisfaction scale.
const maxSatisfaction = 5

type tenureBin struct {
	upper int
	label string
}

// Right-closed bins over (0, 1000].
var tenureBins = []tenureBin{
	{6, "0-6"},
	{12, "6-12"},
	{24, "12-24"},
	{48, "24-48"},
	{1000, "48+"},
}

// TenureBucket labels a tenure. Tenures outside (0, 1000] have no bucket
// and return "".
func TenureBucket(tenure int) string {
	if tenure <= 0 {
		return ""
	}
	for _, b := range tenureBins {
		if tenure <= b.upper {
			return b.label
		}
	}
	return ""
}

// ChargesPerMonth spreads total charges over tenure plus one month.
func ChargesPerMonth(total float64, tenure int) float64 {
	return total / float64(tenure+1)
}

// Engineer derives the engineered fields from a cleaned record. It is a
// pure function of its inputs.
func Engineer(c domain.CleanedRecord, medianMonthlyCharges float64) domain.EngineeredRecord {
	e := domain.EngineeredRecord{
		CleanedRecord:   c,
		TenureBucket:    TenureBucket(c.TenureMonths),
		ChargesPerMonth: ChargesPerMonth(c.TotalCharges, c.TenureMonths),
		EngagementScore: callWeight*c.AvgCallMinutes + dataWeight*c.AvgDataUsageGB,
		CXRiskScore:     c.SupportTicketCount * (maxSatisfaction - c.AvgSatisfactionScore),
		StickinessScore: float64(c.HasOnlineSecurity + c.HasTechSupport + c.StreamingServicesCount),
	}
	if c.MonthlyCharges > medianMonthlyCharges {
		e.HighPriceFlag = 1
	}
	if c.LatePayments > 0 {
		e.PaymentRisk = 1
	}
	return e
}
