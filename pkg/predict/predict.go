// Package predict obtains crop recommendations from a remote prediction
// service, falling back to local scoring whenever the remote path fails.
package predict

import (
	"context"
	"errors"

	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

var (
	// ErrNoExternalResult wraps every remote failure: transport, status,
	// decoding, an empty prediction list, an open breaker or pacing.
	ErrNoExternalResult = errors.New("no external prediction result")

	// ErrSuperseded is returned to a debounced caller whose request was
	// replaced by a newer one.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrClosed is returned by a Debouncer after Close.
	ErrClosed = errors.New("debouncer closed")
)

// Predictor produces recommendations from an external source.
type Predictor interface {
	Predict(ctx context.Context, sample soil.Sample) ([]scoring.CropRecommendation, error)
}

// Recommender always produces a usable result.
type Recommender interface {
	Recommend(ctx context.Context, sample soil.Sample) Result
}

// Source identifies which path produced a Result.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Fallback reasons reported in Result.FallbackReason.
const (
	ReasonDisabled    = "disabled"
	ReasonBreakerOpen = "breaker_open"
	ReasonRateLimited = "rate_limited"
	ReasonCanceled    = "canceled"
	ReasonError       = "error"
)

// Result is a ranked recommendation list and where it came from.
type Result struct {
	Recommendations []scoring.CropRecommendation `json:"recommendations"`
	Source          Source                       `json:"source"`
	FallbackReason  string                       `json:"fallback_reason,omitempty"`
}
