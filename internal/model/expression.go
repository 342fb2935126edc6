package model

import (
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/features"
)

// ExpressionModel scores with a CEL expression over the schema's feature
// names. Numeric features are doubles, categoricals are strings. With the
// logit link the expression yields a log-odds and is passed through a
// sigmoid; with the identity link it must yield a probability directly.
type ExpressionModel struct {
	program  cel.Program
	features []string
	link     string
}

// NewExpression compiles the artifact expression against the schema.
func NewExpression(a *domain.ModelArtifact, schema features.Schema) (*ExpressionModel, error) {
	if a.Expression == "" {
		return nil, fmt.Errorf("expression is required")
	}

	link := a.Link
	if link == "" {
		link = domain.LinkIdentity
	}
	if link != domain.LinkIdentity && link != domain.LinkLogit {
		return nil, fmt.Errorf("unsupported link function: %s", link)
	}

	opts := make([]cel.EnvOption, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		typ := cel.DoubleType
		if c.Kind == domain.FeatureCategorical {
			typ = cel.StringType
		}
		opts = append(opts, cel.Variable(c.Name, typ))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(a.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("expression must return int or double, got %s", outputType)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return &ExpressionModel{
		program:  program,
		features: slices.Clone(a.Features),
		link:     link,
	}, nil
}

// Features returns the ordered inputs the expression is bound to.
func (m *ExpressionModel) Features() []string {
	return m.features
}

// PredictProbability evaluates the expression for one vector.
func (m *ExpressionModel) PredictProbability(vec domain.FeatureVector) (float64, error) {
	if err := checkVector(vec, m.features); err != nil {
		return 0, err
	}

	activation := make(map[string]any, len(vec))
	for _, f := range vec {
		if f.Kind == domain.FeatureCategorical {
			activation[f.Name] = f.Cat
		} else {
			activation[f.Name] = f.Num
		}
	}

	out, _, err := m.program.Eval(activation)
	if err != nil {
		return 0, fmt.Errorf("evaluation error: %w", err)
	}

	v, err := toFloat(out)
	if err != nil {
		return 0, err
	}
	if m.link == domain.LinkLogit {
		return sigmoid(v), nil
	}
	return v, nil
}

func toFloat(val ref.Val) (float64, error) {
	switch v := val.(type) {
	case types.Double:
		return float64(v), nil
	case types.Int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expression returned %s, want double", val.Type().TypeName())
	}
}
