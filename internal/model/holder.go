package model

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/opensource-finance/churnguard/internal/domain"
)

// Holder owns the currently bound model. Reads are lock-free; reloads are
// explicit and serialized, and a failed reload keeps the previous model.
type Holder struct {
	path   string
	schema string

	current atomic.Pointer[Model]
	mu      sync.Mutex
}

// NewHolder creates an empty holder for the artifact at path.
func NewHolder(path, schema string) *Holder {
	return &Holder{path: path, schema: schema}
}

// Load binds the artifact for the first time. An unreadable or invalid
// artifact leaves the holder empty and returns a *domain.ModelUnavailableError.
// A feature contract mismatch returns the *domain.ContractError unchanged so
// callers can treat it as a configuration error.
func (h *Holder) Load() error {
	_, err := h.Reload()
	return err
}

// Reload rebuilds the model from the configured path and swaps it in.
func (h *Holder) Reload() (*Model, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.build()
	if err != nil {
		return nil, err
	}

	prev := h.current.Swap(m)
	if prev != nil {
		slog.Info("model reloaded",
			"previous_version", prev.Artifact.Version,
			"version", m.Artifact.Version,
		)
	} else {
		slog.Info("model loaded",
			"name", m.Artifact.Name,
			"version", m.Artifact.Version,
			"schema", m.Schema.Name,
			"threshold", m.Threshold(),
		)
	}
	return m, nil
}

func (h *Holder) build() (*Model, error) {
	a, err := LoadArtifact(h.path)
	if err != nil {
		slog.Error("model artifact unavailable", "path", h.path, "error", err)
		return nil, &domain.ModelUnavailableError{Reason: "artifact could not be read"}
	}

	m, err := Build(a, h.schema)
	if err != nil {
		var cerr *domain.ContractError
		if errors.As(err, &cerr) {
			return nil, err
		}
		slog.Error("model artifact invalid", "path", h.path, "error", err)
		return nil, &domain.ModelUnavailableError{Reason: "artifact is invalid"}
	}
	return m, nil
}

// Current returns the bound model or a *domain.ModelUnavailableError.
func (h *Holder) Current() (*Model, error) {
	m := h.current.Load()
	if m == nil {
		return nil, &domain.ModelUnavailableError{Reason: "no model loaded"}
	}
	return m, nil
}

// Loaded reports whether a usable model is bound.
func (h *Holder) Loaded() bool {
	return h.current.Load() != nil
}
