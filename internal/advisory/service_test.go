package advisory

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropwise/cropwise/internal/history"
	"github.com/cropwise/cropwise/internal/validation"
	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

var riceSample = soil.Sample{Nitrogen: 80, Phosphorus: 40, Potassium: 40, Temperature: 25, Humidity: 80, PH: 6.5, Rainfall: 200}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeRecorder struct {
	mu         sync.Mutex
	runs       []predict.Result
	detections []string
	err        error
}

func (f *fakeRecorder) RecordRecommendation(ctx context.Context, s soil.Sample, res predict.Result) (*history.RecommendationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.runs = append(f.runs, res)
	return &history.RecommendationRun{ID: "run-1"}, nil
}

func (f *fakeRecorder) RecordDetection(ctx context.Context, key, filename string, d disease.Diagnosis) (*history.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.detections = append(f.detections, key)
	return &history.Detection{ID: "det-1"}, nil
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	ranker := scoring.NewRanker(scoring.NewScorer(catalog.Default()))
	svc := NewService(predict.NewAdapter(ranker, nil), disease.NewDetector(nil, disease.WithPicker(func(int) int { return 0 })), opts...)
	t.Cleanup(svc.Close)
	return svc
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"LOCAL", ModeLocal, false},
		{"remote", "", true},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestRecommend(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestService(t, WithRecorder(rec))

	got, err := svc.Recommend(context.Background(), RecommendRequest{Sample: riceSample, Mode: ModeAuto})
	require.NoError(t, err)
	assert.Equal(t, predict.SourceLocal, got.Source)
	assert.Equal(t, predict.ReasonDisabled, got.FallbackReason)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Recommendations, 3)
	assert.Equal(t, "rice", got.Recommendations[0].Crop)
	assert.Len(t, rec.runs, 1)
}

func TestRecommendLocalMode(t *testing.T) {
	svc := newTestService(t)
	got, err := svc.Recommend(context.Background(), RecommendRequest{Sample: riceSample, Mode: ModeLocal})
	require.NoError(t, err)
	assert.Equal(t, predict.SourceLocal, got.Source)
	assert.Empty(t, got.FallbackReason, "explicit local mode is not a fallback")
}

func TestRecommendRejectsInvalidSample(t *testing.T) {
	svc := newTestService(t)
	bad := riceSample
	bad.Humidity = 140
	bad.PH = -1

	_, err := svc.Recommend(context.Background(), RecommendRequest{Sample: bad})
	require.ErrorIs(t, err, soil.ErrInvalidSample)

	var verr *validation.RequestValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]bool{}
	for _, fe := range verr.Errors() {
		fields[fe.Field()] = true
	}
	assert.True(t, fields["humidity"])
	assert.True(t, fields["ph"])
}

func TestRecommendRecorderFailureIsNotFatal(t *testing.T) {
	svc := newTestService(t, WithRecorder(&fakeRecorder{err: errors.New("db down")}))
	got, err := svc.Recommend(context.Background(), RecommendRequest{Sample: riceSample})
	require.NoError(t, err)
	assert.Empty(t, got.RunID)
	assert.NotEmpty(t, got.Recommendations)
}

func TestRecommendSessionDebounce(t *testing.T) {
	svc := newTestService(t, WithSessionDebounce(100*time.Millisecond))

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Recommend(context.Background(), RecommendRequest{Sample: riceSample, Session: "s1"})
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	got, err := svc.Recommend(context.Background(), RecommendRequest{Sample: riceSample, Session: "s1"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.Recommendations)
	assert.ErrorIs(t, <-firstErr, predict.ErrSuperseded)

	// A different session is independent.
	_, err = svc.Recommend(context.Background(), RecommendRequest{Sample: riceSample, Session: "s2"})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.sessions.len())
}

func TestSessionsEvictOldest(t *testing.T) {
	ranker := scoring.NewRanker(scoring.NewScorer(catalog.Default()))
	adapter := predict.NewAdapter(ranker, nil)

	s := newSessions(time.Millisecond, 2)
	clock := time.Unix(0, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	defer s.close()

	a := s.get("a", adapter)
	s.get("b", adapter)
	s.get("a", adapter) // a is now newer than b
	s.get("c", adapter)

	assert.Equal(t, 2, s.len())
	assert.Same(t, a, s.get("a", adapter))
	_, hasB := s.entries["b"]
	assert.False(t, hasB, "b should have been evicted")
}

type blockingRecommender struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingRecommender) Recommend(ctx context.Context, _ soil.Sample) predict.Result {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return predict.Result{Source: predict.SourceLocal}
}

func TestSessionsKeepInFlightSession(t *testing.T) {
	ranker := scoring.NewRanker(scoring.NewScorer(catalog.Default()))
	adapter := predict.NewAdapter(ranker, nil)
	busy := blockingRecommender{started: make(chan struct{}), release: make(chan struct{})}

	s := newSessions(time.Millisecond, 2)
	clock := time.Unix(0, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	defer s.close()

	a := s.get("a", busy)
	done := make(chan error, 1)
	go func() {
		_, err := a.Recommend(context.Background(), soil.Sample{})
		done <- err
	}()
	<-busy.started

	s.get("b", adapter)
	s.get("c", adapter) // a is oldest but busy, so b goes

	assert.Equal(t, 2, s.len())
	assert.Same(t, a, s.get("a", adapter))
	_, hasB := s.entries["b"]
	assert.False(t, hasB, "b should have been evicted")

	s.get("d", adapter) // c is the only idle session
	_, hasC := s.entries["c"]
	assert.False(t, hasC, "c should have been evicted")

	close(busy.release)
	require.NoError(t, <-done)
}

func TestSessionsExceedLimitWhileAllBusy(t *testing.T) {
	busy := blockingRecommender{started: make(chan struct{}), release: make(chan struct{})}

	s := newSessions(time.Millisecond, 1)
	defer s.close()

	a := s.get("a", busy)
	done := make(chan error, 1)
	go func() {
		_, err := a.Recommend(context.Background(), soil.Sample{})
		done <- err
	}()
	<-busy.started

	ranker := scoring.NewRanker(scoring.NewScorer(catalog.Default()))
	s.get("b", predict.NewAdapter(ranker, nil))
	assert.Equal(t, 2, s.len())

	close(busy.release)
	require.NoError(t, <-done)
}

func TestDiagnose(t *testing.T) {
	store := NewLocalStorage(t.TempDir())
	rec := &fakeRecorder{}
	svc := newTestService(t, WithStorage(store), WithRecorder(rec))

	got, err := svc.Diagnose(context.Background(), Upload{Filename: "Tomato_Leaf.PNG", Data: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, "tomato_late_blight", got.ID)
	assert.Equal(t, "det-1", got.DetectionID)
	assert.True(t, strings.HasPrefix(got.ImageKey, "uploads/"))
	assert.True(t, strings.HasSuffix(got.ImageKey, ".png"))
	assert.Equal(t, []string{got.ImageKey}, rec.detections)

	stored, err := store.GetImage(context.Background(), got.ImageKey)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pngHeader, stored))
}

func TestDiagnoseWithoutStorage(t *testing.T) {
	svc := newTestService(t)
	got, err := svc.Diagnose(context.Background(), Upload{Filename: "leaf", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}})
	require.NoError(t, err)
	assert.Empty(t, got.ImageKey)
	assert.NotEmpty(t, got.Name)
}

func TestDiagnoseRejects(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		name string
		up   Upload
		want error
	}{
		{"empty", Upload{Filename: "a.png"}, ErrEmptyUpload},
		{"too large", Upload{Filename: "a.png", ContentType: "image/png", Data: make([]byte, MaxUploadBytes+1)}, ErrUploadTooLarge},
		{"declared text", Upload{Filename: "a.txt", ContentType: "text/plain", Data: []byte("hello")}, ErrUnsupportedImage},
		{"sniffed text", Upload{Filename: "a", Data: []byte("hello world")}, ErrUnsupportedImage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Diagnose(context.Background(), tc.up)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestImageExt(t *testing.T) {
	assert.Equal(t, ".jpg", imageExt("Leaf.JPG", "image/jpeg"))
	assert.Equal(t, ".png", imageExt("leaf", "image/png"))
	assert.Equal(t, "", imageExt("leaf", "image/x-unknown-type"))
}
