package advisory

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cropwise/cropwise/internal/history"
	"github.com/cropwise/cropwise/internal/logging"
	"github.com/cropwise/cropwise/internal/metrics"
	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/soil"
)

// MaxUploadBytes is the largest accepted image.
const MaxUploadBytes = 10 << 20

var (
	ErrEmptyUpload      = errors.New("image upload is empty")
	ErrUploadTooLarge   = fmt.Errorf("image exceeds %d MB", MaxUploadBytes>>20)
	ErrUnsupportedImage = errors.New("upload is not an image")
)

// Mode selects how recommendations are produced.
type Mode string

const (
	// ModeLocal uses only the local ranker.
	ModeLocal Mode = "local"
	// ModeAuto tries the remote predictor first.
	ModeAuto Mode = "auto"
)

// ParseMode validates a mode name. Empty means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeLocal:
		return ModeLocal, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want local or auto)", s)
	}
}

// Recorder persists results. *history.Service implements it.
type Recorder interface {
	RecordRecommendation(ctx context.Context, sample soil.Sample, res predict.Result) (*history.RecommendationRun, error)
	RecordDetection(ctx context.Context, imageKey, filename string, d disease.Diagnosis) (*history.Detection, error)
}

// RecommendRequest is a request for crop recommendations.
type RecommendRequest struct {
	Sample soil.Sample
	Mode   Mode
	// Session groups rapid requests from one client. Requests sharing a
	// session are debounced so only the latest one runs.
	Session string
}

// Recommendation is a served result.
type Recommendation struct {
	predict.Result
	RunID string `json:"run_id,omitempty"`
}

// Upload is an uploaded image.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Diagnosis is a detection result for a stored image.
type Diagnosis struct {
	disease.Diagnosis
	ImageKey    string `json:"image_key,omitempty"`
	DetectionID string `json:"detection_id,omitempty"`
}

// Service orchestrates recommendation and diagnosis workflows.
type Service struct {
	adapter  *predict.Adapter
	detector *disease.Detector
	storage  ImageStorage
	recorder Recorder
	sessions *sessions
}

// Option configures a Service.
type Option func(*Service)

// WithStorage keeps uploaded images in s.
func WithStorage(s ImageStorage) Option {
	return func(svc *Service) { svc.storage = s }
}

// WithRecorder records results with r.
func WithRecorder(r Recorder) Option {
	return func(svc *Service) { svc.recorder = r }
}

// WithSessionDebounce enables per-session debouncing with the given delay.
func WithSessionDebounce(delay time.Duration) Option {
	return func(svc *Service) { svc.sessions = newSessions(delay, defaultMaxSessions) }
}

// NewService creates a new advisory Service.
func NewService(adapter *predict.Adapter, detector *disease.Detector, opts ...Option) *Service {
	svc := &Service{adapter: adapter, detector: detector}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Adapter returns the recommendation adapter.
func (s *Service) Adapter() *predict.Adapter { return s.adapter }

// Close releases pending debounced requests.
func (s *Service) Close() {
	if s.sessions != nil {
		s.sessions.close()
	}
}

// Recommend validates the sample and ranks crops for it. Superseded session
// requests return predict.ErrSuperseded.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (*Recommendation, error) {
	if err := req.Sample.Validate(); err != nil {
		return nil, err
	}

	var res predict.Result
	switch {
	case req.Mode == ModeLocal:
		res = s.adapter.Local(req.Sample)
	case req.Session != "" && s.sessions != nil:
		var err error
		res, err = s.sessions.get(req.Session, s.adapter).Recommend(ctx, req.Sample)
		if err != nil {
			return nil, err
		}
	default:
		res = s.adapter.Recommend(ctx, req.Sample)
	}
	metrics.RecordRecommendation(string(res.Source), res.FallbackReason)

	rec := &Recommendation{Result: res}
	if s.recorder != nil {
		run, err := s.recorder.RecordRecommendation(ctx, req.Sample, res)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to record recommendation")
		} else {
			rec.RunID = run.ID
		}
	}
	return rec, nil
}

// Diagnose stores an uploaded image and identifies the disease it shows.
func (s *Service) Diagnose(ctx context.Context, up Upload) (*Diagnosis, error) {
	if len(up.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if len(up.Data) > MaxUploadBytes {
		return nil, ErrUploadTooLarge
	}

	contentType := up.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(up.Data)
	}
	if mt, _, err := mime.ParseMediaType(contentType); err != nil || !strings.HasPrefix(mt, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}

	key := "uploads/" + uuid.NewString() + imageExt(up.Filename, contentType)
	if s.storage != nil {
		if err := s.storage.PutImage(ctx, key, contentType, up.Data); err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
	} else {
		key = ""
	}

	d, err := s.detector.Detect(ctx, disease.Image{
		Filename:    up.Filename,
		ContentType: contentType,
		Size:        int64(len(up.Data)),
	})
	if err != nil {
		return nil, fmt.Errorf("detect disease: %w", err)
	}
	metrics.RecordDiagnosis(d.ID, int64(len(up.Data)))

	out := &Diagnosis{Diagnosis: d, ImageKey: key}
	if s.recorder != nil {
		det, err := s.recorder.RecordDetection(ctx, key, up.Filename, d)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("failed to record detection")
		} else {
			out.DetectionID = det.ID
		}
	}

	logging.Ctx(ctx).Info().
		Str("disease", d.ID).
		Str("image_key", key).
		Int("bytes", len(up.Data)).
		Msg("diagnosis completed")
	return out, nil
}

func imageExt(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}
