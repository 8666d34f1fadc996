package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cropwise/cropwise/internal/history"
	"github.com/cropwise/cropwise/internal/logging"
)

func (h *Handler) historyEnabled(w http.ResponseWriter) bool {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return false
	}
	return true
}

func parseLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return history.ClampLimit(limit)
}

func (h *Handler) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}

	runs, err := h.history.ListRecommendations(r.Context(), parseLimit(r))
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("list recommendations")
		writeError(w, http.StatusInternalServerError, "failed to list recommendations")
		return
	}
	if runs == nil {
		runs = []history.RecommendationRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}

	run, err := h.history.GetRecommendation(r.Context(), r.PathValue("runID"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recommendation not found")
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("get recommendation")
		writeError(w, http.StatusInternalServerError, "failed to load recommendation")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleListDetections(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}

	detections, err := h.history.ListDetections(r.Context(), parseLimit(r))
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("list detections")
		writeError(w, http.StatusInternalServerError, "failed to list detections")
		return
	}
	if detections == nil {
		detections = []history.Detection{}
	}
	writeJSON(w, http.StatusOK, detections)
}
