// Package api implements the hosted Cropwise REST API.
// It serves the crop catalog, recommendations, disease diagnoses and the
// optional Postgres-backed history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cropwise/cropwise/internal/advisory"
	"github.com/cropwise/cropwise/internal/history"
	"github.com/cropwise/cropwise/internal/logging"
	"github.com/cropwise/cropwise/internal/validation"
)

// SessionHeader groups rapid recommendation requests from one client.
const SessionHeader = "X-Cropwise-Session"

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// Handler is the top-level API handler for the hosted Cropwise service.
type Handler struct {
	svc     *advisory.Service
	history *history.Service
	health  func(ctx context.Context) error
	apiKey  string
}

// Option configures a Handler.
type Option func(*Handler)

// WithHistory serves history endpoints from svc.
func WithHistory(svc *history.Service) Option {
	return func(h *Handler) { h.history = svc }
}

// WithHealthCheck makes /healthz report check's result.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(h *Handler) { h.health = check }
}

// WithAPIKey requires key in the X-API-Key header on write endpoints.
func WithAPIKey(key string) Option {
	return func(h *Handler) { h.apiKey = key }
}

// NewHandler creates a new API handler.
func NewHandler(svc *advisory.Service, opts ...Option) *Handler {
	h := &Handler{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	auth := APIKeyAuth(h.apiKey)

	// Write endpoints (auth-protected)
	mux.Handle("POST /api/v1/recommendations", auth(http.HandlerFunc(h.handleRecommend)))
	mux.Handle("POST /api/v1/scores", auth(http.HandlerFunc(h.handleScore)))
	mux.Handle("POST /api/v1/diagnoses", auth(http.HandlerFunc(h.handleDiagnose)))

	// Read endpoints
	mux.HandleFunc("GET /api/v1/crops", h.handleListCrops)
	mux.HandleFunc("GET /api/v1/crops/{cropID}", h.handleGetCrop)
	mux.HandleFunc("GET /api/v1/history/recommendations", h.handleListRecommendations)
	mux.HandleFunc("GET /api/v1/history/recommendations/{runID}", h.handleGetRecommendation)
	mux.HandleFunc("GET /api/v1/history/detections", h.handleListDetections)

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Routes returns the full middleware-wrapped API.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return RequestID(Instrument(CORS(mux)))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "unhealthy: "+err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRequestError writes a 400, with per-field details when err carries
// validation failures.
func writeRequestError(w http.ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		apiErr := verr.ToAPIError()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   apiErr.Message,
			"code":    apiErr.Code,
			"details": apiErr.Details,
		})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
