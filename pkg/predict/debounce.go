package predict

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cropwise/cropwise/internal/metrics"
	"github.com/cropwise/cropwise/pkg/soil"
)

// DefaultDebounceDelay is how long a request must stay unreplaced before it runs.
const DefaultDebounceDelay = 1200 * time.Millisecond

// Debouncer collapses rapid successive requests to the most recent one.
//
// Each call cancels the context of the call before it. That stops the older
// call's settling timer, or aborts its remote request if it already started,
// and the older caller receives ErrSuperseded. A result is only delivered if
// its call is still the newest when it completes, so a slow older request can
// never overwrite a newer one.
type Debouncer struct {
	next  Recommender
	delay time.Duration

	mu      sync.Mutex
	gen     uint64
	pending context.CancelCauseFunc
	closed  bool
}

// NewDebouncer wraps next. A non-positive delay uses DefaultDebounceDelay.
func NewDebouncer(next Recommender, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{next: next, delay: delay}
}

// Delay returns the settling delay.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Recommend waits for the settling delay and then runs the wrapped
// Recommender, unless a newer call arrives first.
func (d *Debouncer) Recommend(ctx context.Context, sample soil.Sample) (Result, error) {
	callCtx, gen, err := d.begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer d.end(gen)

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-callCtx.Done():
		return Result{}, d.abandoned(ctx, callCtx)
	case <-timer.C:
	}

	res := d.next.Recommend(callCtx, sample)
	if callCtx.Err() != nil || !d.current(gen) {
		return Result{}, d.abandoned(ctx, callCtx)
	}
	return res, nil
}

// Pending reports whether a call is waiting or running.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Close cancels any pending call. Later calls return ErrClosed.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.pending != nil {
		d.pending(ErrClosed)
		d.pending = nil
	}
}

func (d *Debouncer) begin(ctx context.Context) (context.Context, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, 0, ErrClosed
	}
	if d.pending != nil {
		d.pending(ErrSuperseded)
	}
	d.gen++
	callCtx, cancel := context.WithCancelCause(ctx)
	d.pending = cancel
	return callCtx, d.gen, nil
}

func (d *Debouncer) end(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == gen && d.pending != nil {
		d.pending(nil)
		d.pending = nil
	}
}

func (d *Debouncer) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen == gen && !d.closed
}

// abandoned reports why a call produced no result: the caller's own
// cancellation wins over supersession.
func (d *Debouncer) abandoned(parent, callCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	cause := context.Cause(callCtx)
	if errors.Is(cause, ErrClosed) {
		return ErrClosed
	}
	metrics.DebounceSupersededTotal.Inc()
	return ErrSuperseded
}
