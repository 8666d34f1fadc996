package scoring

import (
	"math"
	"sync/atomic"

	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/soil"
)

// Scorer computes suitability scores against a catalog and memoizes them.
type Scorer struct {
	catalog *catalog.Catalog
	weights Weights
	cache   ScoreCache

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights replaces the default field weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithCache replaces the default unbounded MapCache.
func WithCache(c ScoreCache) Option {
	return func(s *Scorer) {
		if c != nil {
			s.cache = c
		}
	}
}

// NewScorer creates a scorer over cat. With no options it uses DefaultWeights
// and an unbounded MapCache owned by the scorer.
func NewScorer(cat *catalog.Catalog, opts ...Option) *Scorer {
	s := &Scorer{
		catalog: cat,
		weights: DefaultWeights(),
		cache:   NewMapCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the catalog the scorer was built with.
func (s *Scorer) Catalog() *catalog.Catalog { return s.catalog }

// Weights returns the weights in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Score returns the suitability of sample for cropID in [0, 100].
// Crops outside the catalog yield catalog.ErrUnknownCrop.
func (s *Scorer) Score(cropID string, sample soil.Sample) (float64, error) {
	p, err := s.catalog.Get(cropID)
	if err != nil {
		return 0, err
	}
	return s.scoreProfile(p, sample), nil
}

// CacheStats reports cache hits, misses and size.
func (s *Scorer) CacheStats() CacheStats {
	return CacheStats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Entries: s.cache.Len(),
	}
}

func (s *Scorer) scoreProfile(p catalog.CropProfile, sample soil.Sample) float64 {
	key := p.ID + "|" + sample.Key()
	if v, ok := s.cache.Get(key); ok {
		s.hits.Add(1)
		return v
	}
	s.misses.Add(1)

	v := Suitability(p.Ideal, sample, s.weights)
	s.cache.Put(key, v)
	return v
}

// Suitability scores sample against an ideal vector without caching:
// 100 minus the weighted relative deviation as a percentage, clamped to [0, 100].
// Absent ideal fields are treated as a target of 0.
func Suitability(ideal soil.Partial, sample soil.Sample, w Weights) float64 {
	var total float64
	for _, f := range soil.Fields() {
		total += Deviation(ideal.Target(f), sample.Get(f)) * w.Of(f)
	}
	return math.Max(0, math.Min(100, 100-total*100))
}

// Deviation is |actual - ideal| / ideal. A zero ideal uses a denominator of 1,
// so the deviation becomes the raw absolute difference.
func Deviation(ideal, actual float64) float64 {
	denom := ideal
	if denom == 0 {
		denom = 1
	}
	return math.Abs((actual - ideal) / denom)
}
