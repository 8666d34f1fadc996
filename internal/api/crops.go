package api

import (
	"errors"
	"net/http"

	"github.com/cropwise/cropwise/internal/validation"
	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

type cropResponse struct {
	Name string `json:"name"`
	catalog.CropProfile
}

// sampleRequest is the JSON shape of a soil sample. Every field must be
// present; zero is a valid reading.
type sampleRequest struct {
	Nitrogen    *float64 `json:"nitrogen" validate:"required"`
	Phosphorus  *float64 `json:"phosphorus" validate:"required"`
	Potassium   *float64 `json:"potassium" validate:"required"`
	Temperature *float64 `json:"temperature" validate:"required"`
	Humidity    *float64 `json:"humidity" validate:"required"`
	PH          *float64 `json:"ph" validate:"required"`
	Rainfall    *float64 `json:"rainfall" validate:"required"`
}

func (s *sampleRequest) toSample() (soil.Sample, error) {
	if verr := validation.ValidateStruct(s); verr != nil {
		return soil.Sample{}, verr
	}
	return soil.Sample{
		Nitrogen:    *s.Nitrogen,
		Phosphorus:  *s.Phosphorus,
		Potassium:   *s.Potassium,
		Temperature: *s.Temperature,
		Humidity:    *s.Humidity,
		PH:          *s.PH,
		Rainfall:    *s.Rainfall,
	}, nil
}

// scoreRequest is the JSON body for POST /api/v1/scores.
type scoreRequest struct {
	Crop   string        `json:"crop"`
	Sample sampleRequest `json:"sample"`
}

type scoreResponse struct {
	Crop   string  `json:"crop"`
	Score  float64 `json:"score"`
	Rating string  `json:"rating"`
}

func (h *Handler) scorer() *scoring.Scorer {
	return h.svc.Adapter().Ranker().Scorer()
}

func (h *Handler) handleListCrops(w http.ResponseWriter, r *http.Request) {
	cat := h.scorer().Catalog()

	profiles := cat.Profiles()
	if season := r.URL.Query().Get("season"); season != "" {
		profiles = cat.Filter(season)
	}

	result := make([]cropResponse, 0, len(profiles))
	for _, p := range profiles {
		result = append(result, cropResponse{Name: catalog.DisplayName(p.ID), CropProfile: p})
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetCrop(w http.ResponseWriter, r *http.Request) {
	p, err := h.scorer().Catalog().Get(r.PathValue("cropID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cropResponse{Name: catalog.DisplayName(p.ID), CropProfile: p})
}

// handleScore handles POST /api/v1/scores, scoring one crop against a sample.
func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Crop == "" {
		writeError(w, http.StatusBadRequest, "crop is required")
		return
	}

	sample, err := req.Sample.toSample()
	if err == nil {
		err = sample.Validate()
	}
	if err != nil {
		writeRequestError(w, err)
		return
	}

	score, err := h.scorer().Score(req.Crop, sample)
	if errors.Is(err, catalog.ErrUnknownCrop) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	p, _ := h.scorer().Catalog().Lookup(req.Crop)
	writeJSON(w, http.StatusOK, scoreResponse{
		Crop:   p.ID,
		Score:  score,
		Rating: scoring.Rating(score),
	})
}
