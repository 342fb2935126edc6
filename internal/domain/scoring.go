package domain

import (
	"time"
)

// FeatureKind distinguishes numeric from categorical model inputs.
type FeatureKind string

const (
	FeatureNumeric     FeatureKind = "numeric"
	FeatureCategorical FeatureKind = "categorical"
)

// Feature is a single named model input.
type Feature struct {
	Name string      `json:"name"`
	Kind FeatureKind `json:"kind"`
	Num  float64     `json:"num,omitempty"`
	Cat  string      `json:"cat,omitempty"`
}

// FeatureVector is the ordered input handed to a scoring function.
type FeatureVector []Feature

// Names returns the feature names in order.
func (v FeatureVector) Names() []string {
	names := make([]string, len(v))
	for i, f := range v {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the feature with the given name.
func (v FeatureVector) Lookup(name string) (Feature, bool) {
	for _, f := range v {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// RiskTier is the communication bucket for a churn probability.
type RiskTier string

const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// ScoringResult is the outcome of scoring a single account.
type ScoringResult struct {
	Probability float64  `json:"probability"`
	Tier        RiskTier `json:"risk_tier"`
	Action      string   `json:"action"`
	Decision    int      `json:"decision"`

	// Threshold is the decision cut-point the result was produced with.
	Threshold    float64 `json:"threshold"`
	ModelName    string  `json:"model_name"`
	ModelVersion string  `json:"model_version"`
}

// Prediction is the audit record of a served scoring request.
type Prediction struct {
	ID        string        `json:"id"`
	TraceID   string        `json:"traceId,omitempty"`
	Request   ScoreRequest  `json:"request"`
	Result    ScoringResult `json:"result"`
	Cached    bool          `json:"cached"`
	LatencyMs int64         `json:"latencyMs"`
	CreatedAt time.Time     `json:"createdAt"`
}

// PredictionResponse is the API payload for POST /predict.
// Probability is a percentage rounded to two decimals.
type PredictionResponse struct {
	PredictionID string   `json:"predictionId,omitempty"`
	Probability  float64  `json:"probability"`
	Risk         RiskTier `json:"risk"`
	Suggestion   string   `json:"suggestion"`
	Decision     int      `json:"decision"`
	Threshold    float64  `json:"threshold"`
}
