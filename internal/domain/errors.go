package domain

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is matched by errors.Is for any ModelUnavailableError.
var ErrModelUnavailable = errors.New("model unavailable")

// ValidationError reports a client-supplied value outside the domain the
// model was trained on. Never retried.
type ValidationError struct {
	Field      string
	Value      string
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s %s", e.Field, e.Constraint)
	}
	return fmt.Sprintf("%s %s (got %q)", e.Field, e.Constraint, e.Value)
}

// ModelUnavailableError reports that no usable scoring function is bound.
// Reason is for logs only.
type ModelUnavailableError struct {
	Reason string
}

func (e *ModelUnavailableError) Error() string {
	if e.Reason == "" {
		return ErrModelUnavailable.Error()
	}
	return ErrModelUnavailable.Error() + ": " + e.Reason
}

func (e *ModelUnavailableError) Is(target error) bool {
	return target == ErrModelUnavailable
}

// ScoringError wraps an unexpected failure inside the scoring function.
type ScoringError struct {
	Model string
	Err   error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

// ContractError reports a mismatch between a model's expected feature list
// and the schema the deriver produces. It is a configuration error.
type ContractError struct {
	Schema   string
	Expected []string
	Got      []string
	Detail   string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("feature contract mismatch for schema %q: %s", e.Schema, e.Detail)
}
