package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/cropwise/cropwise/internal/logging"
	"github.com/cropwise/cropwise/internal/metrics"
	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

// DefaultURL is the public prediction endpoint.
const DefaultURL = "https://crop-recommendation-ml-api.onrender.com/predict"

const (
	unknownCropDescription = "A versatile crop suitable for your conditions."
	unknownCropFertilizer  = "General purpose fertilizer"

	maxResponseBytes = 1 << 20
)

var (
	errEmptyPredictions = errors.New("empty prediction list")
	errMalformed        = errors.New("malformed prediction")
	errRateLimited      = errors.New("rate limited")
)

// ClientConfig configures the remote client.
type ClientConfig struct {
	URL string

	// Timeout bounds each request. Zero leaves it to the transport.
	Timeout time.Duration

	// BreakerFailures consecutive failures open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// RatePerSecond paces outbound requests. Zero disables pacing.
	RatePerSecond float64
	Burst         int
}

// DefaultClientConfig returns the settings used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:             DefaultURL,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
		RatePerSecond:   2,
		Burst:           1,
	}
}

// Client calls the remote prediction service.
type Client struct {
	url     string
	http    *http.Client
	catalog *catalog.Catalog
	cb      *gobreaker.CircuitBreaker[[]scoring.CropRecommendation]
	limiter *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a remote client. Predictions are enriched from cat.
func NewClient(cfg ClientConfig, cat *catalog.Catalog, opts ...ClientOption) *Client {
	def := DefaultClientConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	c := &Client{
		url:     cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		catalog: cat,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
	for _, opt := range opts {
		opt(c)
	}

	name := "remote-predict"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	failures := cfg.BreakerFailures
	c.cb = gobreaker.NewCircuitBreaker[[]scoring.CropRecommendation](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A request abandoned by its caller says nothing about the remote's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return c
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string { return c.url }

// Predict posts sample to the remote service. Every failure is reported as
// ErrNoExternalResult wrapping the cause.
func (c *Client) Predict(ctx context.Context, sample soil.Sample) ([]scoring.CropRecommendation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoExternalResult, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w: %v", ErrNoExternalResult, errRateLimited, err)
	}

	start := time.Now()
	recs, err := c.cb.Execute(func() ([]scoring.CropRecommendation, error) {
		return c.do(ctx, sample)
	})
	metrics.RemoteRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoExternalResult, err)
	}
	return recs, nil
}

type predictRequest struct {
	Nitrogen    float64 `json:"nitrogen"`
	Phosphorus  float64 `json:"phosphorus"`
	Potassium   float64 `json:"potassium"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

type prediction struct {
	Crop        string  `json:"crop"`
	Confidence  float64 `json:"confidence"`
	Suitability float64 `json:"suitability"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

func (c *Client) do(ctx context.Context, sample soil.Sample) ([]scoring.CropRecommendation, error) {
	body, err := json.Marshal(predictRequest(sample))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting prediction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("remote returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var pr predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(pr.Predictions) == 0 {
		return nil, errEmptyPredictions
	}

	recs := make([]scoring.CropRecommendation, 0, len(pr.Predictions))
	for i, p := range pr.Predictions {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("prediction %d: %w", i, err)
		}
		recs = append(recs, c.enrich(p))
	}
	return recs, nil
}

// validate rejects predictions without a crop or with fractions outside [0,1].
func (p prediction) validate() error {
	if strings.TrimSpace(p.Crop) == "" {
		return fmt.Errorf("%w: missing crop", errMalformed)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", errMalformed, p.Confidence)
	}
	if p.Suitability < 0 || p.Suitability > 1 {
		return fmt.Errorf("%w: suitability %v out of range", errMalformed, p.Suitability)
	}
	return nil
}

// enrich maps a remote prediction onto the catalog. Fractions become
// percentages, with confidence capped like local rankings.
func (c *Client) enrich(p prediction) scoring.CropRecommendation {
	id := strings.ToLower(strings.TrimSpace(p.Crop))
	rec := scoring.CropRecommendation{
		Crop:             id,
		Confidence:       math.Min(p.Confidence*100, scoring.MaxConfidence),
		SuitabilityScore: p.Suitability * 100,
	}

	profile, ok := c.catalog.Lookup(id)
	if !ok {
		rec.Description = unknownCropDescription
		rec.Fertilizers = []string{unknownCropFertilizer}
		return rec
	}
	rec.Description = profile.Description
	rec.Fertilizers = append([]string(nil), profile.Fertilizers...)
	rec.IdealConditions = profile.Ideal.Clone()
	rec.Season = profile.Season
	rec.GrowthDuration = profile.GrowthDuration
	return rec
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
