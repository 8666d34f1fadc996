package surface

import (
	"encoding/json"
	"io"

	"github.com/cropwise/cropwise/pkg/disease"
)

// JSONRenderer marshals results to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) RenderRecommendations(w io.Writer, report *RecommendationReport) error {
	return encode(w, report)
}

func (r *JSONRenderer) RenderDiagnosis(w io.Writer, d *disease.Diagnosis) error {
	return encode(w, d)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
