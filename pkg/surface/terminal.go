package surface

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

// TerminalRenderer renders results as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func ratingColor(rating string) string {
	if noColor() {
		return ""
	}
	switch rating {
	case "Excellent", "Good":
		return colorGreen
	case "Fair":
		return colorYellow
	case "Poor":
		return colorRed
	default:
		return ""
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) RenderRecommendations(w io.Writer, report *RecommendationReport) error {
	source := "local model"
	if report.Source == predict.SourceRemote {
		source = "remote model"
	}
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("Crop recommendations (%s)", source)))
	if report.FallbackReason != "" && report.FallbackReason != predict.ReasonDisabled {
		fmt.Fprintf(w, "%s\n", dim("remote prediction unavailable: "+report.FallbackReason))
	}
	fmt.Fprintf(w, "Soil: %s\n\n", formatSample(report.Sample))

	if len(report.Recommendations) == 0 {
		fmt.Fprintln(w, "No recommendations.")
		return nil
	}

	for i, rec := range report.Recommendations {
		rating := scoring.Rating(rec.SuitabilityScore)
		fmt.Fprintf(w, "%d. %s  %s  suitability %.1f  confidence %.1f\n",
			i+1, bold(catalog.DisplayName(rec.Crop)),
			colored(rating, ratingColor(rating)), rec.SuitabilityScore, rec.Confidence)

		if rec.Season != "" || rec.GrowthDuration != "" {
			fmt.Fprintf(w, "   %s\n", dim(seasonLine(rec)))
		}
		for _, line := range wrapText(rec.Description, 70) {
			fmt.Fprintf(w, "   %s\n", line)
		}
		if len(rec.Fertilizers) > 0 {
			fmt.Fprintf(w, "   Fertilizers: %s\n", strings.Join(rec.Fertilizers, ", "))
		}
		if rec.IdealConditions.Len() > 0 {
			fmt.Fprintf(w, "   %s\n", dim("Ideal: "+formatPartial(rec.IdealConditions)))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (r *TerminalRenderer) RenderDiagnosis(w io.Writer, d *disease.Diagnosis) error {
	color := colorRed
	if d.Healthy() {
		color = colorGreen
	}
	if noColor() {
		color = ""
	}

	title := d.Name
	if d.PlantType != "" {
		title = fmt.Sprintf("%s (%s)", d.Name, d.PlantType)
	}
	fmt.Fprintf(w, "%s  confidence %.0f%%\n\n", bold(colored(title, color)), d.Confidence)

	for _, line := range wrapText(d.Description, 70) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	if len(d.Remedies) > 0 {
		fmt.Fprintln(w, "Remedies:")
		for _, s := range d.Remedies {
			fmt.Fprintf(w, "  • %s\n", s)
		}
		fmt.Fprintln(w)
	}
	if len(d.PreventiveMeasures) > 0 {
		fmt.Fprintln(w, "Prevention:")
		for _, s := range d.PreventiveMeasures {
			fmt.Fprintf(w, "  • %s\n", s)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func seasonLine(rec scoring.CropRecommendation) string {
	var parts []string
	if rec.Season != "" {
		parts = append(parts, "Season: "+rec.Season)
	}
	if rec.GrowthDuration != "" {
		parts = append(parts, "Growth: "+rec.GrowthDuration)
	}
	return strings.Join(parts, ", ")
}

func formatSample(s soil.Sample) string {
	return fmt.Sprintf("N %g, P %g, K %g, %g°C, %g%% humidity, pH %g, %g mm rainfall",
		s.Nitrogen, s.Phosphorus, s.Potassium, s.Temperature, s.Humidity, s.PH, s.Rainfall)
}

func formatPartial(p soil.Partial) string {
	var parts []string
	for _, f := range soil.Fields() {
		if v, ok := p.Get(f); ok {
			parts = append(parts, fmt.Sprintf("%s %g", f, v))
		}
	}
	return strings.Join(parts, ", ")
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
