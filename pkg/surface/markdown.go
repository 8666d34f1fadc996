package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/scoring"
)

// MarkdownRenderer produces Markdown reports suitable for sharing.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) RenderRecommendations(w io.Writer, report *RecommendationReport) error {
	_, err := io.WriteString(w, buildRecommendationMarkdown(report))
	return err
}

func (r *MarkdownRenderer) RenderDiagnosis(w io.Writer, d *disease.Diagnosis) error {
	_, err := io.WriteString(w, buildDiagnosisMarkdown(d))
	return err
}

func buildRecommendationMarkdown(report *RecommendationReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Crop recommendations (%s)\n\n", report.Source))

	s := report.Sample
	sb.WriteString("### Soil sample\n\n")
	sb.WriteString("| Nitrogen | Phosphorus | Potassium | Temperature | Humidity | pH | Rainfall |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	sb.WriteString(fmt.Sprintf("| %g | %g | %g | %g | %g | %g | %g |\n\n",
		s.Nitrogen, s.Phosphorus, s.Potassium, s.Temperature, s.Humidity, s.PH, s.Rainfall))

	sb.WriteString("### Ranking\n\n")
	if len(report.Recommendations) == 0 {
		sb.WriteString("_No recommendations._\n")
		return sb.String()
	}
	sb.WriteString("| # | Crop | Rating | Suitability | Confidence | Season |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for i, rec := range report.Recommendations {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s %s | %.1f | %.1f | %s |\n",
			i+1, catalog.DisplayName(rec.Crop), ratingIcon(rec.SuitabilityScore),
			scoring.Rating(rec.SuitabilityScore), rec.SuitabilityScore, rec.Confidence, rec.Season))
	}
	sb.WriteString("\n")

	for _, rec := range report.Recommendations {
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", catalog.DisplayName(rec.Crop), rec.Description))
		if len(rec.Fertilizers) > 0 {
			sb.WriteString(fmt.Sprintf("  - Fertilizers: %s\n", strings.Join(rec.Fertilizers, ", ")))
		}
	}
	return sb.String()
}

func buildDiagnosisMarkdown(d *disease.Diagnosis) string {
	var sb strings.Builder

	icon := ":red_circle:"
	if d.Healthy() {
		icon = ":green_circle:"
	}
	sb.WriteString(fmt.Sprintf("## %s %s (%.0f%% confidence)\n\n", icon, d.Name, d.Confidence))
	if d.PlantType != "" {
		sb.WriteString(fmt.Sprintf("**Plant:** %s\n\n", d.PlantType))
	}
	sb.WriteString(d.Description + "\n\n")

	if len(d.Remedies) > 0 {
		sb.WriteString("### Remedies\n\n")
		for _, s := range d.Remedies {
			sb.WriteString("- " + s + "\n")
		}
		sb.WriteString("\n")
	}
	if len(d.PreventiveMeasures) > 0 {
		sb.WriteString("### Prevention\n\n")
		for _, s := range d.PreventiveMeasures {
			sb.WriteString("- " + s + "\n")
		}
	}
	return sb.String()
}

func ratingIcon(score float64) string {
	switch scoring.Rating(score) {
	case "Excellent", "Good":
		return ":green_circle:"
	case "Fair":
		return ":yellow_circle:"
	default:
		return ":red_circle:"
	}
}
