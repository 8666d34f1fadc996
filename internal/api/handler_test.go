package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropwise/cropwise/internal/advisory"
	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/scoring"
	"github.com/cropwise/cropwise/pkg/soil"
)

const riceBody = `{"nitrogen":80,"phosphorus":40,"potassium":40,"temperature":25,"humidity":80,"ph":6.5,"rainfall":200}`

func newTestServer(t *testing.T, remote predict.Predictor, opts ...Option) *httptest.Server {
	t.Helper()
	cat := catalog.Default()
	ranker := scoring.NewRanker(scoring.NewScorer(cat), scoring.WithNoise(func() float64 { return 0 }))
	svc := advisory.NewService(
		predict.NewAdapter(ranker, remote),
		disease.NewDetector(nil, disease.WithPicker(func(int) int { return 0 })),
	)
	t.Cleanup(svc.Close)

	srv := httptest.NewServer(NewHandler(svc, opts...).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestListCrops(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/v1/crops")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	crops := decodeBody[[]cropResponse](t, resp)
	assert.Len(t, crops, catalog.Default().Len())
	assert.Equal(t, "rice", crops[0].ID)
	assert.Equal(t, "Rice", crops[0].Name)

	resp, err = http.Get(srv.URL + "/api/v1/crops?season=rabi")
	require.NoError(t, err)
	rabi := decodeBody[[]cropResponse](t, resp)
	require.NotEmpty(t, rabi)
	assert.Less(t, len(rabi), len(crops))
	for _, c := range rabi {
		assert.Contains(t, strings.ToLower(c.Season), "rabi", c.ID)
	}
}

func TestGetCrop(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/v1/crops/Black_Pepper")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	crop := decodeBody[cropResponse](t, resp)
	assert.Equal(t, "black_pepper", crop.ID)
	assert.Equal(t, "Black Pepper", crop.Name)

	resp, err = http.Get(srv.URL + "/api/v1/crops/unobtainium")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScore(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantScore  float64
	}{
		{"ideal", `{"crop":"rice","sample":` + riceBody + `}`, http.StatusOK, 100},
		{"unknown crop", `{"crop":"unobtainium","sample":` + riceBody + `}`, http.StatusNotFound, 0},
		{"missing crop", `{"sample":` + riceBody + `}`, http.StatusBadRequest, 0},
		{"missing field", `{"crop":"rice","sample":{"nitrogen":80}}`, http.StatusBadRequest, 0},
		{"unknown field", `{"crop":"rice","soil":{}}`, http.StatusBadRequest, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/scores", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			if tc.wantStatus != http.StatusOK {
				resp.Body.Close()
				return
			}
			got := decodeBody[scoreResponse](t, resp)
			assert.Equal(t, "rice", got.Crop)
			assert.Equal(t, tc.wantScore, got.Score)
			assert.Equal(t, "Excellent", got.Rating)
		})
	}
}

type recommendationBody struct {
	Recommendations []scoring.CropRecommendation `json:"recommendations"`
	Source          string                       `json:"source"`
	FallbackReason  string                       `json:"fallback_reason"`
	Sample          map[string]float64           `json:"sample"`
}

func TestRecommendLocal(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/v1/recommendations?mode=local", "application/json", strings.NewReader(riceBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[recommendationBody](t, resp)
	assert.Equal(t, "local", got.Source)
	assert.Empty(t, got.FallbackReason)
	require.Len(t, got.Recommendations, 3)
	assert.Equal(t, "rice", got.Recommendations[0].Crop)
	assert.Equal(t, 90.0, got.Recommendations[0].Confidence)
	assert.Equal(t, 6.5, got.Sample["ph"])
}

func TestRecommendFallsBackWhenRemoteFails(t *testing.T) {
	remote := predictorFunc(func(context.Context) error { return predict.ErrNoExternalResult })
	srv := newTestServer(t, remote)

	resp, err := http.Post(srv.URL+"/api/v1/recommendations", "application/json", strings.NewReader(riceBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[recommendationBody](t, resp)
	assert.Equal(t, "local", got.Source)
	assert.Equal(t, predict.ReasonError, got.FallbackReason)
}

func TestRecommendRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name, query, body string
		wantCode          string
	}{
		{"bad mode", "?mode=remote", riceBody, ""},
		{"not json", "", "nitrogen=80", ""},
		{"missing fields", "", `{"nitrogen":80}`, "VALIDATION_ERROR"},
		{"out of range", "", strings.Replace(riceBody, `"humidity":80`, `"humidity":180`, 1), "VALIDATION_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/recommendations"+tc.query, "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody[map[string]any](t, resp)
			assert.NotEmpty(t, body["error"])
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, body["code"])
				assert.NotNil(t, body["details"])
			}
		})
	}
}

type predictorFunc func(ctx context.Context) error

func (f predictorFunc) Predict(ctx context.Context, _ soil.Sample) ([]scoring.CropRecommendation, error) {
	return nil, f(ctx)
}

func multipartImage(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDiagnose(t *testing.T) {
	srv := newTestServer(t, nil)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	body, ct := multipartImage(t, "image", "wheat_rust.png", png)
	resp, err := http.Post(srv.URL+"/api/v1/diagnoses", ct, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[disease.Diagnosis](t, resp)
	assert.Equal(t, "wheat_leaf_rust", got.ID)
	assert.NotEmpty(t, got.Remedies)
}

func TestDiagnoseRejects(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		field      string
		data       []byte
		wantStatus int
	}{
		{"wrong field", "file", []byte("\x89PNG\r\n\x1a\n"), http.StatusBadRequest},
		{"empty", "image", nil, http.StatusBadRequest},
		{"not an image", "image", []byte("just some text"), http.StatusUnsupportedMediaType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartImage(t, tc.field, "upload.bin", tc.data)
			resp, err := http.Post(srv.URL+"/api/v1/diagnoses", ct, body)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestHistoryDisabled(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, path := range []string{
		"/api/v1/history/recommendations",
		"/api/v1/history/recommendations/abc",
		"/api/v1/history/detections",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	failing := newTestServer(t, nil, WithHealthCheck(func(context.Context) error {
		return errors.New("database unreachable")
	}))
	resp, err = http.Get(failing.URL + "/healthz")
	require.NoError(t, err)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body["error"], "database unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	// Generate at least one labelled request first.
	resp, err := http.Get(srv.URL + "/api/v1/crops/rice")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `route="GET /api/v1/crops/{cropID}"`)
}
