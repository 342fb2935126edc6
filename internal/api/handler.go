package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/metrics"
	"github.com/opensource-finance/churnguard/internal/model"
	"github.com/opensource-finance/churnguard/internal/repository"
	"github.com/opensource-finance/churnguard/internal/scoring"
	"github.com/opensource-finance/churnguard/internal/validate"
)

const (
	defaultListLimit = 50
	maxBodyBytes     = 1 << 20
)

// ModelHolder is the served-model lifecycle the API needs.
type ModelHolder interface {
	Current() (*model.Model, error)
	Reload() (*model.Model, error)
	Loaded() bool
}

// Deps wires the handler. Only Processor and Models are required.
type Deps struct {
	Processor  *scoring.Processor
	Models     ModelHolder
	Repo       domain.Repository
	Cache      domain.Cache
	Bus        domain.EventBus
	Metrics    *metrics.Metrics
	InstanceID string
	Version    string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	processor  *scoring.Processor
	models     ModelHolder
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	metrics    *metrics.Metrics
	instanceID string
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		processor:  deps.Processor,
		models:     deps.Models,
		repo:       deps.Repo,
		cache:      deps.Cache,
		bus:        deps.Bus,
		metrics:    deps.Metrics,
		instanceID: deps.InstanceID,
		version:    deps.Version,
	}
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	Model        string `json:"model,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
	Repository   string `json:"repository,omitempty"`
	Cache        string `json:"cache,omitempty"`
	Version      string `json:"version"`
}

// Predict handles POST /predict. It accepts the seven request fields as
// form values (urlencoded or multipart) or as a flat JSON object.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	values, err := requestValues(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	req, err := validate.ParseRequest(values)
	if err != nil {
		h.metrics.ObserveFailure(scoring.ErrorKind(err))
		writeError(w, err, traceID)
		return
	}

	pred, err := h.processor.Process(ctx, req, traceID)
	if err != nil {
		writeError(w, err, traceID)
		return
	}

	writeJSON(w, http.StatusOK, domain.PredictionResponse{
		PredictionID: pred.ID,
		Probability:  percent(pred.Result.Probability),
		Risk:         pred.Result.Tier,
		Suggestion:   pred.Result.Action,
		Decision:     pred.Result.Decision,
		Threshold:    pred.Result.Threshold,
	})
}

// percent converts a probability to a percentage rounded to two decimals.
func percent(p float64) float64 {
	return math.Round(p*100*100) / 100
}

func requestValues(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return jsonValues(r)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("invalid form body")
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body")
		}
	}

	values := make(map[string]string, len(validate.Fields))
	for _, field := range validate.Fields {
		if vs, ok := r.PostForm[field]; ok && len(vs) > 0 {
			values[field] = vs[0]
		}
	}
	return values, nil
}

func jsonValues(r *http.Request) (map[string]string, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON request body")
	}

	values := make(map[string]string, len(validate.Fields))
	for _, field := range validate.Fields {
		switch v := body[field].(type) {
		case nil:
		case json.Number:
			values[field] = v.String()
		case string:
			values[field] = v
		default:
			values[field] = fmt.Sprint(v)
		}
	}
	return values, nil
}

// writeError maps domain errors to HTTP statuses. Client messages never
// carry file paths or internal detail beyond the failing field.
func writeError(w http.ResponseWriter, err error, traceID string) {
	var verr *domain.ValidationError
	var serr *domain.ScoringError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, domain.ErrModelUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "model not loaded, please try again later"})
	case errors.As(err, &serr):
		slog.Error("prediction failed", "trace_id", traceID, "model", serr.Model, "error", serr.Err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: serr.Error()})
	default:
		slog.Error("request failed", "trace_id", traceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// Health reports whether a model is bound. Without one the service cannot
// score, so the status is 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Version: h.version}

	m, err := h.models.Current()
	if err != nil {
		resp.Status = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.ModelLoaded = true
	resp.Model = m.Artifact.Name
	resp.ModelVersion = m.Artifact.Version

	if h.repo != nil {
		resp.Repository = "ok"
		if err := h.repo.Ping(r.Context()); err != nil {
			resp.Repository = "unreachable"
			resp.Status = "degraded"
		}
	}
	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache.Ping(r.Context()); err != nil {
			resp.Cache = "unreachable"
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.models.Loaded() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

// GetPrediction retrieves a served prediction by ID.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "repository not available"})
		return
	}

	pred, err := h.repo.GetPrediction(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "prediction not found"})
		return
	}
	if err != nil {
		slog.Error("failed to get prediction", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to get prediction"})
		return
	}

	writeJSON(w, http.StatusOK, pred)
}

// ListPredictions returns recent predictions, newest first.
// Query: limit (1..1000, default 50), since (RFC 3339).
func (h *Handler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "repository not available"})
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > repository.MaxListLimit {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("limit must be between 1 and %d", repository.MaxListLimit),
				Field: "limit",
			})
			return
		}
		limit = n
	}

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "since must be an RFC 3339 timestamp", Field: "since"})
			return
		}
		since = t
	}

	preds, err := h.repo.ListPredictions(r.Context(), since, limit)
	if err != nil {
		slog.Error("failed to list predictions", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to list predictions"})
		return
	}
	if preds == nil {
		preds = []*domain.Prediction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"predictions": preds,
		"count":       len(preds),
	})
}

// GetModel returns metadata for the bound model.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.models.Current()
	if err != nil {
		writeError(w, err, GetTraceID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, m.Info())
}

// ReloadModel rebuilds the model from its configured artifact. On failure
// the previous model keeps serving.
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.models.Reload()
	h.metrics.ObserveReload(err == nil)
	h.metrics.SetModelLoaded(h.models.Loaded())

	if err != nil {
		var cerr *domain.ContractError
		switch {
		case errors.As(err, &cerr):
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: cerr.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "model reload failed, previous model retained"})
		}
		return
	}

	info := m.Info()
	if h.bus != nil {
		payload, err := json.Marshal(domain.ModelReloadedMessage{InstanceID: h.instanceID, Model: info})
		if err == nil {
			err = h.bus.Publish(r.Context(), domain.TopicModelReloaded, payload)
		}
		if err != nil {
			slog.Error("failed to announce model reload", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
