package predict

import (
	"context"
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/cropwise/cropwise/internal/logging"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

// Adapter tries a remote Predictor and falls back to the local ranker.
// It never fails.
type Adapter struct {
	ranker *scoring.Ranker
	remote Predictor
}

// NewAdapter creates an adapter. A nil remote means local ranking only.
func NewAdapter(ranker *scoring.Ranker, remote Predictor) *Adapter {
	return &Adapter{ranker: ranker, remote: remote}
}

// Ranker returns the local ranker.
func (a *Adapter) Ranker() *scoring.Ranker { return a.ranker }

// RemoteEnabled reports whether a remote predictor is configured.
func (a *Adapter) RemoteEnabled() bool { return a.remote != nil }

// Recommend returns remote recommendations when available and the local
// top N otherwise.
func (a *Adapter) Recommend(ctx context.Context, sample soil.Sample) Result {
	if a.remote == nil {
		return a.local(sample, ReasonDisabled)
	}

	recs, err := a.remote.Predict(ctx, sample)
	if err == nil && len(recs) > 0 {
		return Result{Recommendations: recs, Source: SourceRemote}
	}
	if err == nil {
		err = errEmptyPredictions
	}

	reason := FallbackReason(err)
	ev := logging.Ctx(ctx).Warn()
	if reason == ReasonCanceled {
		ev = logging.Ctx(ctx).Debug()
	}
	ev.Err(err).Str("reason", reason).Msg("falling back to local recommendation model")
	return a.local(sample, reason)
}

// Local ranks sample with the local model only.
func (a *Adapter) Local(sample soil.Sample) Result {
	return Result{Recommendations: a.ranker.Recommend(sample), Source: SourceLocal}
}

func (a *Adapter) local(sample soil.Sample, reason string) Result {
	res := a.Local(sample)
	res.FallbackReason = reason
	return res
}

// FallbackReason classifies a remote failure for logs and metrics.
func FallbackReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ReasonBreakerOpen
	case errors.Is(err, errRateLimited):
		return ReasonRateLimited
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonError
	}
}
