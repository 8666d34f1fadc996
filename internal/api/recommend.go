package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/cropwise/cropwise/internal/advisory"
	"github.com/cropwise/cropwise/internal/logging"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/soil"
)

type recommendationResponse struct {
	Sample soil.Sample `json:"sample"`
	*advisory.Recommendation
}

// handleRecommend handles POST /api/v1/recommendations?mode=local|auto.
func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	mode, err := advisory.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req sampleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sample, err := req.toSample()
	if err != nil {
		writeRequestError(w, err)
		return
	}

	rec, err := h.svc.Recommend(r.Context(), advisory.RecommendRequest{
		Sample:  sample,
		Mode:    mode,
		Session: r.Header.Get(SessionHeader),
	})
	switch {
	case errors.Is(err, soil.ErrInvalidSample):
		writeRequestError(w, err)
		return
	case errors.Is(err, predict.ErrSuperseded), errors.Is(err, predict.ErrClosed):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, context.Canceled):
		// Client went away.
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("recommendation failed")
		writeError(w, http.StatusInternalServerError, "recommendation failed")
		return
	}

	writeJSON(w, http.StatusOK, recommendationResponse{Sample: sample, Recommendation: rec})
}

// handleDiagnose handles POST /api/v1/diagnoses with a multipart "image" field.
func (h *Handler) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, advisory.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(advisory.MaxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, advisory.ErrUploadTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image: "+err.Error())
		return
	}

	d, err := h.svc.Diagnose(r.Context(), advisory.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	switch {
	case errors.Is(err, advisory.ErrEmptyUpload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, advisory.ErrUploadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, advisory.ErrUnsupportedImage):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("diagnosis failed")
		writeError(w, http.StatusInternalServerError, "diagnosis failed")
		return
	}

	writeJSON(w, http.StatusOK, d)
}
