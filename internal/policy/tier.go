// Package policy maps churn probabilities to risk tiers, recommended
// actions and binary decisions.
package policy

import "github.com/opensource-finance/churnguard/internal/domain"

// Tier boundaries. These are for communication only and are independent of
// the decision threshold carried by the model artifact.
const (
	HighRiskFloor   = 0.70
	MediumRiskFloor = 0.40
)

// Recommended actions per tier.
const (
	ActionHigh   = "Immediate retention action required. Offer personalized discounts, loyalty rewards, or special plans."
	ActionMedium = "Monitor closely. Provide proactive customer support and engagement offers."
	ActionLow    = "No immediate action needed. Continue normal engagement."
)

// Classify returns the risk tier and recommended action for p.
func Classify(p float64) (domain.RiskTier, string) {
	switch {
	case p >= HighRiskFloor:
		return domain.RiskHigh, ActionHigh
	case p >= MediumRiskFloor:
		return domain.RiskMedium, ActionMedium
	default:
		return domain.RiskLow, ActionLow
	}
}
