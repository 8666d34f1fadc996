package surface_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
	"github.com/cropwise/cropwise/pkg/surface"
)

func sampleReport() *surface.RecommendationReport {
	sample := soil.Sample{Nitrogen: 80, Phosphorus: 40, Potassium: 40, Temperature: 25, Humidity: 80, PH: 6.5, Rainfall: 200}
	ranker := scoring.NewRanker(scoring.NewScorer(catalog.Default()), scoring.WithNoise(func() float64 { return 0.5 }))
	return &surface.RecommendationReport{
		Sample: sample,
		Result: predict.Result{
			Recommendations: ranker.Recommend(sample),
			Source:          predict.SourceLocal,
			FallbackReason:  predict.ReasonBreakerOpen,
		},
	}
}

func sampleDiagnosis(t *testing.T) *disease.Diagnosis {
	t.Helper()
	d, ok := disease.DefaultTable().Lookup("tomato_late_blight")
	if !ok {
		t.Fatal("tomato_late_blight missing from table")
	}
	return &d
}

func TestTerminalRenderer_Recommendations(t *testing.T) {
	// Set NO_COLOR to avoid ANSI codes in test comparison
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	r := &surface.TerminalRenderer{}
	var buf bytes.Buffer

	if err := r.RenderRecommendations(&buf, sampleReport()); err != nil {
		t.Fatalf("RenderRecommendations() error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"Crop recommendations (local model)",
		"remote prediction unavailable: breaker_open",
		"N 80, P 40, K 40",
		"1. Rice  Excellent  suitability 100.0  confidence 95.0",
		"2. Paddy",
		"3. Sugarcane",
		"Season: Kharif, Growth: 90-150 days",
		"Fertilizers: Urea, NPK 20-20-20, Ammonium Sulfate",
		"Ideal: nitrogen 80",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\033[") {
		t.Error("unexpected ANSI codes with NO_COLOR set")
	}
}

func TestTerminalRenderer_Empty(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	r := &surface.TerminalRenderer{}
	var buf bytes.Buffer

	report := &surface.RecommendationReport{Result: predict.Result{Source: predict.SourceRemote}}
	if err := r.RenderRecommendations(&buf, report); err != nil {
		t.Fatalf("RenderRecommendations() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "remote model") {
		t.Error("expected remote source in header")
	}
	if !strings.Contains(output, "No recommendations") {
		t.Error("expected 'No recommendations' message")
	}
}

func TestTerminalRenderer_Diagnosis(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	r := &surface.TerminalRenderer{}
	var buf bytes.Buffer

	if err := r.RenderDiagnosis(&buf, sampleDiagnosis(t)); err != nil {
		t.Fatalf("RenderDiagnosis() error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"Tomato Late Blight (Tomato)", "confidence 95%", "Remedies:", "Prevention:", "copper-based fungicides"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestTerminalRenderer_ColorRespected(t *testing.T) {
	// Without NO_COLOR, output should have ANSI codes
	os.Unsetenv("NO_COLOR")

	r := &surface.TerminalRenderer{}
	var buf bytes.Buffer

	if err := r.RenderRecommendations(&buf, sampleReport()); err != nil {
		t.Fatalf("RenderRecommendations() error: %v", err)
	}

	if !strings.Contains(buf.String(), "\033[") {
		t.Error("expected ANSI escape codes when NO_COLOR is not set")
	}
}

func TestJSONRenderer(t *testing.T) {
	r := &surface.JSONRenderer{}
	var buf bytes.Buffer

	if err := r.RenderRecommendations(&buf, sampleReport()); err != nil {
		t.Fatalf("RenderRecommendations() error: %v", err)
	}

	var decoded struct {
		Sample          map[string]float64 `json:"sample"`
		Source          string             `json:"source"`
		FallbackReason  string             `json:"fallback_reason"`
		Recommendations []struct {
			Crop             string             `json:"crop"`
			SuitabilityScore float64            `json:"suitability_score"`
			IdealConditions  map[string]float64 `json:"ideal_conditions"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Source != "local" || decoded.FallbackReason != "breaker_open" {
		t.Errorf("unexpected source fields: %+v", decoded)
	}
	if decoded.Sample["rainfall"] != 200 {
		t.Errorf("expected sample rainfall 200, got %v", decoded.Sample["rainfall"])
	}
	if len(decoded.Recommendations) != 3 || decoded.Recommendations[0].Crop != "rice" {
		t.Fatalf("unexpected recommendations: %+v", decoded.Recommendations)
	}
	if decoded.Recommendations[0].IdealConditions["ph"] != 6.5 {
		t.Errorf("expected ideal ph 6.5, got %v", decoded.Recommendations[0].IdealConditions)
	}
}

func TestMarkdownRenderer(t *testing.T) {
	r := &surface.MarkdownRenderer{}

	var buf bytes.Buffer
	if err := r.RenderRecommendations(&buf, sampleReport()); err != nil {
		t.Fatalf("RenderRecommendations() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "## Crop recommendations (local)") {
		t.Errorf("missing heading:\n%s", out)
	}
	if !strings.Contains(out, "| 1 | Rice | :green_circle: Excellent | 100.0 |") {
		t.Errorf("missing ranking row:\n%s", out)
	}

	buf.Reset()
	if err := r.RenderDiagnosis(&buf, sampleDiagnosis(t)); err != nil {
		t.Fatalf("RenderDiagnosis() error: %v", err)
	}
	if !strings.Contains(buf.String(), "### Remedies") {
		t.Errorf("missing remedies:\n%s", buf.String())
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		want    surface.Renderer
		wantErr bool
	}{
		{"", &surface.TerminalRenderer{}, false},
		{"text", &surface.TerminalRenderer{}, false},
		{"json", &surface.JSONRenderer{}, false},
		{"markdown", &surface.MarkdownRenderer{}, false},
		{"xml", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := surface.ForFormat(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if fmt.Sprintf("%T", got) != fmt.Sprintf("%T", tt.want) {
				t.Errorf("ForFormat(%q) = %T, want %T", tt.format, got, tt.want)
			}
		})
	}
}
