// Package scoring implements crop suitability scoring and recommendation ranking.
// Scores are deterministic distances between a soil sample and each crop's ideal
// conditions; confidence values layered on top for display are not.
package scoring

import "github.com/cropwise/cropwise/pkg/soil"

// CropRecommendation is a read-only projection of one ranked crop.
type CropRecommendation struct {
	Crop             string       `json:"crop"`
	Confidence       float64      `json:"confidence"`        // display only, 0-99
	SuitabilityScore float64      `json:"suitability_score"` // ranking key, 0-100
	Fertilizers      []string     `json:"fertilizers"`
	Description      string       `json:"description"`
	IdealConditions  soil.Partial `json:"ideal_conditions"`
	Season           string       `json:"season,omitempty"`
	GrowthDuration   string       `json:"growth_duration,omitempty"`
}

// Ranked pairs a crop with its suitability score.
type Ranked struct {
	Crop  string  `json:"crop"`
	Score float64 `json:"score"`
}

// CacheStats reports score cache effectiveness.
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Rating maps a suitability score to a display label.
func Rating(score float64) string {
	switch {
	case score >= 85:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 50:
		return "Fair"
	default:
		return "Poor"
	}
}
