package disease

import (
	"context"
	"math/rand/v2"
	"time"
)

// Image is what the detector knows about an upload.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
}

// Picker returns an index in [0, n).
type Picker func(n int) int

// Detector picks a diagnosis for an image.
type Detector struct {
	table *Table
	pick  Picker
	delay time.Duration
}

// Option configures a Detector.
type Option func(*Detector)

// WithPicker replaces the random index source.
func WithPicker(p Picker) Option {
	return func(d *Detector) {
		if p != nil {
			d.pick = p
		}
	}
}

// WithDelay makes Detect wait before answering, as a slow model would.
func WithDelay(delay time.Duration) Option {
	return func(d *Detector) { d.delay = delay }
}

// NewDetector creates a detector over table, or the embedded table if nil.
func NewDetector(table *Table, opts ...Option) *Detector {
	if table == nil {
		table = DefaultTable()
	}
	d := &Detector{table: table, pick: rand.IntN}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Table returns the detector's table.
func (d *Detector) Table() *Table { return d.table }

// Detect diagnoses img. Keyword matches in the file name are picked from
// uniformly; otherwise the pick is weighted across the whole table.
func (d *Detector) Detect(ctx context.Context, img Image) (Diagnosis, error) {
	if d.table == nil || d.table.Len() == 0 {
		return Diagnosis{}, ErrEmptyTable
	}

	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Diagnosis{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Diagnosis{}, err
	}

	if cands := d.table.Candidates(img.Filename); len(cands) > 0 {
		diag, _ := d.table.Lookup(cands[d.pick(len(cands))])
		return diag, nil
	}

	i := d.table.weighted[d.pick(len(d.table.weighted))]
	return d.table.entries[i].Diagnosis.clone(), nil
}
