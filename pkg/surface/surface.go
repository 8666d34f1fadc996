// Package surface defines output rendering for cropwise results.
// Implementations handle different output targets: terminal, JSON, Markdown.
package surface

import (
	"fmt"
	"io"

	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/soil"
)

// Renderer produces formatted output from recommendation and diagnosis results.
type Renderer interface {
	// RenderRecommendations writes a ranked recommendation report.
	RenderRecommendations(w io.Writer, report *RecommendationReport) error
	// RenderDiagnosis writes a disease diagnosis.
	RenderDiagnosis(w io.Writer, d *disease.Diagnosis) error
}

// RecommendationReport pairs a soil sample with the result ranked for it.
type RecommendationReport struct {
	Sample soil.Sample `json:"sample"`
	predict.Result
}

// ForFormat returns the renderer for an output format name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or markdown)", format)
	}
}
