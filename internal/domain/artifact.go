package domain

// Model kinds understood by the artifact loader.
const (
	ModelKindLogistic   = "logistic"
	ModelKindExpression = "expression"
)

// Link functions for expression models.
const (
	LinkIdentity = "identity"
	LinkLogit    = "logit"
)

// ModelArtifact is the persisted bundle produced by the training harness.
// The core only needs a scoring function and a threshold; the rest is
// metadata carried through for operators.
type ModelArtifact struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Kind        string `json:"kind"`
	Schema      string `json:"schema"`
	Description string `json:"description,omitempty"`

	// Features is the ordered input list the model was fit on.
	Features []string `json:"features"`

	Threshold       float64 `json:"threshold"`
	ThresholdSource string  `json:"threshold_source,omitempty"`

	// Logistic regression parameters.
	Intercept   float64               `json:"intercept,omitempty"`
	Numeric     []NumericCoefficient  `json:"numeric,omitempty"`
	Categorical []CategoricalEncoding `json:"categorical,omitempty"`

	// Expression model parameters.
	Expression string `json:"expression,omitempty"`
	Link       string `json:"link,omitempty"`

	CreatedAt  string  `json:"created_at,omitempty"`
	CVScore    float64 `json:"cv_score,omitempty"`
	TestAUC    float64 `json:"test_auc,omitempty"`
	DataSource string  `json:"data_source,omitempty"`
}

// NumericCoefficient is a standard-scaled numeric input and its weight.
type NumericCoefficient struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
	Coef  float64 `json:"coef"`
}

// CategoricalEncoding holds one-hot weights per known category.
// Unknown categories contribute nothing.
type CategoricalEncoding struct {
	Name       string             `json:"name"`
	Categories map[string]float64 `json:"categories"`
}

// ModelInfo is the operator-facing summary of the bound model.
type ModelInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Kind        string   `json:"kind"`
	Schema      string   `json:"schema"`
	Features    []string `json:"features"`
	Threshold   float64  `json:"threshold"`
	Description string   `json:"description,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	LoadedAt    string   `json:"loadedAt"`
}
