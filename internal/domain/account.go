package domain

// RawAccountRecord holds account attributes as captured by ingestion.
// Pointer fields are nullable in the source data.
type RawAccountRecord struct {
	CustomerID string `json:"customerId,omitempty"`

	TenureMonths   int      `json:"tenure_months"`
	MonthlyCharges float64  `json:"monthly_charges"`
	TotalCharges   *float64 `json:"total_charges,omitempty"`
	ContractType   string   `json:"contract_type"`
	PaymentMethod  string   `json:"payment_method"`

	SupportTicketCount   *float64 `json:"support_ticket_count,omitempty"`
	AvgResolutionTime    *float64 `json:"avg_resolution_time,omitempty"`
	AvgSatisfactionScore *float64 `json:"avg_satisfaction_score,omitempty"`

	AvgCallMinutes *float64 `json:"avg_call_minutes,omitempty"`
	AvgDataUsageGB *float64 `json:"avg_data_usage_gb,omitempty"`
	LatePayments   *float64 `json:"late_payments,omitempty"`

	HasOnlineSecurity      int `json:"has_online_security"`
	HasTechSupport         int `json:"has_tech_support"`
	StreamingServicesCount int `json:"streaming_services_count"`

	// Churn is the training label. Nil at inference time.
	Churn *int `json:"churn,omitempty"`
}

// CleanedRecord is a RawAccountRecord after imputation, categorical
// normalization and winsorization. No field is null.
type CleanedRecord struct {
	CustomerID string `json:"customerId,omitempty"`

	TenureMonths   int     `json:"tenure_months"`
	MonthlyCharges float64 `json:"monthly_charges"`
	TotalCharges   float64 `json:"total_charges"`
	ContractType   string  `json:"contract_type"`
	PaymentMethod  string  `json:"payment_method"`

	SupportTicketCount   float64 `json:"support_ticket_count"`
	AvgResolutionTime    float64 `json:"avg_resolution_time"`
	AvgSatisfactionScore float64 `json:"avg_satisfaction_score"`

	AvgCallMinutes float64 `json:"avg_call_minutes"`
	AvgDataUsageGB float64 `json:"avg_data_usage_gb"`
	LatePayments   float64 `json:"late_payments"`

	HasOnlineSecurity      int `json:"has_online_security"`
	HasTechSupport         int `json:"has_tech_support"`
	StreamingServicesCount int `json:"streaming_services_count"`
}

// EngineeredRecord extends a CleanedRecord with derived features.
type EngineeredRecord struct {
	CleanedRecord

	TenureBucket    string  `json:"tenure_bucket"`
	ChargesPerMonth float64 `json:"charges_per_month"`
	HighPriceFlag   int     `json:"high_price_flag"`
	EngagementScore float64 `json:"engagement_score"`
	CXRiskScore     float64 `json:"cx_risk_score"`
	PaymentRisk     int     `json:"payment_risk"`
	StickinessScore float64 `json:"stickiness_score"`
}

// ScoreRequest is the deployment-facing request: the seven fields the
// served model was trained on.
type ScoreRequest struct {
	TenureMonths       int     `json:"tenure_months"`
	ContractType       string  `json:"contract_type"`
	MonthlyCharges     float64 `json:"monthly_charges"`
	PaymentMethod      string  `json:"payment_method"`
	SupportTicketCount int     `json:"support_ticket_count"`
	AvgCallMinutes     float64 `json:"avg_call_minutes"`
	AvgDataUsageGB     float64 `json:"avg_data_usage_gb"`
}

// ToRaw lifts a deployment request into the raw record shape.
func (r ScoreRequest) ToRaw() RawAccountRecord {
	tickets := float64(r.SupportTicketCount)
	calls := r.AvgCallMinutes
	data := r.AvgDataUsageGB
	return RawAccountRecord{
		TenureMonths:       r.TenureMonths,
		MonthlyCharges:     r.MonthlyCharges,
		ContractType:       r.ContractType,
		PaymentMethod:      r.PaymentMethod,
		SupportTicketCount: &tickets,
		AvgCallMinutes:     &calls,
		AvgDataUsageGB:     &data,
	}
}
