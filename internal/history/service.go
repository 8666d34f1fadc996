// Package history records recommendation runs and disease detections in Postgres.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("history record not found")

const (
	// DefaultLimit is the page size when none is given.
	DefaultLimit = 10
	// MaxLimit caps list requests.
	MaxLimit = 100
)

// Service provides history storage backed by Postgres.
type Service struct {
	db *sql.DB
}

// RecommendationRun is one served recommendation.
type RecommendationRun struct {
	ID              string                       `json:"id"`
	Sample          soil.Sample                  `json:"sample"`
	Source          predict.Source               `json:"source"`
	FallbackReason  string                       `json:"fallback_reason,omitempty"`
	Recommendations []scoring.CropRecommendation `json:"recommendations"`
	CreatedAt       time.Time                    `json:"created_at"`
}

// Detection is one disease diagnosis of an uploaded image.
type Detection struct {
	ID          string    `json:"id"`
	ImageKey    string    `json:"image_key"`
	Filename    string    `json:"filename"`
	DiseaseID   string    `json:"disease_id"`
	DiseaseName string    `json:"disease_name"`
	PlantType   string    `json:"plant_type,omitempty"`
	Confidence  float64   `json:"confidence"`
	DetectedAt  time.Time `json:"detected_at"`
}

// NewService creates a new history Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// RecordRecommendation stores a served result.
func (s *Service) RecordRecommendation(ctx context.Context, sample soil.Sample, res predict.Result) (*RecommendationRun, error) {
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return nil, fmt.Errorf("marshal sample: %w", err)
	}
	recs := res.Recommendations
	if recs == nil {
		recs = []scoring.CropRecommendation{}
	}
	recsJSON, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("marshal recommendations: %w", err)
	}

	run := &RecommendationRun{
		ID:              uuid.NewString(),
		Sample:          sample,
		Source:          res.Source,
		FallbackReason:  res.FallbackReason,
		Recommendations: recs,
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO recommendation_runs (id, sample, source, fallback_reason, recommendations)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		run.ID, sampleJSON, string(res.Source), res.FallbackReason, recsJSON,
	).Scan(&run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("record recommendation: %w", err)
	}
	return run, nil
}

// ListRecommendations returns the newest runs first.
func (s *Service) ListRecommendations(ctx context.Context, limit int) ([]RecommendationRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sample, source, fallback_reason, recommendations, created_at
		 FROM recommendation_runs ORDER BY created_at DESC LIMIT $1`,
		ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	runs := []RecommendationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRecommendation returns a single run by ID.
func (s *Service) GetRecommendation(ctx context.Context, id string) (*RecommendationRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get recommendation %s: %w", id, ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sample, source, fallback_reason, recommendations, created_at
		 FROM recommendation_runs WHERE id = $1`,
		id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get recommendation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get recommendation %s: %w", id, err)
	}
	return run, nil
}

// RecordDetection stores a diagnosis for an uploaded image.
func (s *Service) RecordDetection(ctx context.Context, imageKey, filename string, d disease.Diagnosis) (*Detection, error) {
	det := &Detection{
		ID:          uuid.NewString(),
		ImageKey:    imageKey,
		Filename:    filename,
		DiseaseID:   d.ID,
		DiseaseName: d.Name,
		PlantType:   d.PlantType,
		Confidence:  d.Confidence,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO detections (id, image_key, filename, disease_id, disease_name, plant_type, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING detected_at`,
		det.ID, det.ImageKey, det.Filename, det.DiseaseID, det.DiseaseName, det.PlantType, det.Confidence,
	).Scan(&det.DetectedAt)
	if err != nil {
		return nil, fmt.Errorf("record detection: %w", err)
	}
	return det, nil
}

// ListDetections returns the newest detections first.
func (s *Service) ListDetections(ctx context.Context, limit int) ([]Detection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, image_key, filename, disease_id, disease_name, plant_type, confidence, detected_at
		 FROM detections ORDER BY detected_at DESC LIMIT $1`,
		ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	dets := []Detection{}
	for rows.Next() {
		var d Detection
		if err := rows.Scan(&d.ID, &d.ImageKey, &d.Filename, &d.DiseaseID, &d.DiseaseName, &d.PlantType, &d.Confidence, &d.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		dets = append(dets, d)
	}
	return dets, rows.Err()
}

// ClampLimit applies DefaultLimit to non-positive values and caps at MaxLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RecommendationRun, error) {
	var (
		run        RecommendationRun
		source     string
		sampleJSON []byte
		recsJSON   []byte
	)
	if err := row.Scan(&run.ID, &sampleJSON, &source, &run.FallbackReason, &recsJSON, &run.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan recommendation run: %w", err)
	}
	run.Source = predict.Source(source)
	if err := json.Unmarshal(sampleJSON, &run.Sample); err != nil {
		return nil, fmt.Errorf("unmarshal sample for run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal(recsJSON, &run.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations for run %s: %w", run.ID, err)
	}
	return &run, nil
}
