package scoring

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/cropwise/cropwise/pkg/soil"
)

// MaxConfidence caps every displayed confidence.
const MaxConfidence = 99

// NoiseFunc returns a value in [0, 1). It perturbs confidence for display.
type NoiseFunc func() float64

// Ranker orders every catalog crop by suitability and projects the top N
// into recommendations.
type Ranker struct {
	scorer *Scorer
	topN   int
	noise  NoiseFunc
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithTopN sets how many recommendations are returned. Values < 1 are ignored.
func WithTopN(n int) RankerOption {
	return func(r *Ranker) {
		if n > 0 {
			r.topN = n
		}
	}
}

// WithNoise replaces the random source used for confidence.
func WithNoise(fn NoiseFunc) RankerOption {
	return func(r *Ranker) {
		if fn != nil {
			r.noise = fn
		}
	}
}

// NewRanker creates a ranker returning DefaultTopN recommendations.
func NewRanker(scorer *Scorer, opts ...RankerOption) *Ranker {
	r := &Ranker{
		scorer: scorer,
		topN:   DefaultTopN,
		noise:  rand.Float64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scorer returns the underlying scorer.
func (r *Ranker) Scorer() *Scorer { return r.scorer }

// TopN returns the configured result size.
func (r *Ranker) TopN() int { return r.topN }

// Rank scores every crop and sorts by score, highest first. Equal scores keep
// catalog order.
func (r *Ranker) Rank(sample soil.Sample) []Ranked {
	profiles := r.scorer.catalog.Profiles()
	ranked := make([]Ranked, len(profiles))
	for i, p := range profiles {
		ranked[i] = Ranked{Crop: p.ID, Score: r.scorer.scoreProfile(p, sample)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Recommend returns the top N crops for sample with catalog metadata attached.
// Fewer are returned only when the catalog is smaller than N.
func (r *Ranker) Recommend(sample soil.Sample) []CropRecommendation {
	ranked := r.Rank(sample)
	if len(ranked) > r.topN {
		ranked = ranked[:r.topN]
	}

	recs := make([]CropRecommendation, 0, len(ranked))
	for _, rk := range ranked {
		p, _ := r.scorer.catalog.Lookup(rk.Crop)
		recs = append(recs, CropRecommendation{
			Crop:             p.ID,
			Confidence:       Confidence(rk.Score, r.noise()),
			SuitabilityScore: rk.Score,
			Fertilizers:      append([]string(nil), p.Fertilizers...),
			Description:      p.Description,
			IdealConditions:  p.Ideal.Clone(),
			Season:           p.Season,
			GrowthDuration:   p.GrowthDuration,
		})
	}
	return recs
}

// Confidence derives the display confidence from a suitability score and a
// noise sample in [0, 1): min(99, score*0.9 + noise*10), never below 0.
func Confidence(score, noise float64) float64 {
	return math.Max(0, math.Min(MaxConfidence, score*0.9+noise*10))
}
