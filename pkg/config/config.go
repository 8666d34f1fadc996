// Package config handles loading and managing cropwise configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cropwise/cropwise/pkg/catalog"
	"github.com/cropwise/cropwise/pkg/disease"
	"github.com/cropwise/cropwise/pkg/predict"
	"github.com/cropwise/cropwise/pkg/scoring"
)

// Config is the top-level configuration for cropwise.
type Config struct {
	Scoring  ScoringConfig  `yaml:"scoring"`
	Remote   RemoteConfig   `yaml:"remote"`
	Disease  DiseaseConfig  `yaml:"disease"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
}

// ScoringConfig controls local scoring.
type ScoringConfig struct {
	Weights     map[string]float64 `yaml:"weights"`      // field name -> weight override
	TopN        int                `yaml:"top_n"`
	CacheSize   int                `yaml:"cache_size"`   // 0 = unbounded
	CatalogPath string             `yaml:"catalog_path"` // replaces the embedded catalog
}

// RemoteConfig controls the remote prediction service.
type RemoteConfig struct {
	Enabled         bool    `yaml:"enabled"`
	URL             string  `yaml:"url"`
	Timeout         int     `yaml:"timeout"` // seconds, 0 = transport default
	DebounceMS      int     `yaml:"debounce_ms"`
	BreakerFailures uint32  `yaml:"breaker_failures"`
	BreakerCooldown int     `yaml:"breaker_cooldown"` // seconds
	RatePerSecond   float64 `yaml:"rate_per_second"`
	Burst           int     `yaml:"burst"`
}

// DiseaseConfig controls disease detection.
type DiseaseConfig struct {
	DelayMS   int    `yaml:"delay_ms"`
	TablePath string `yaml:"table_path"` // replaces the embedded table
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// StorageConfig selects where uploaded images are kept.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // local, s3 or gcs
	LocalPath string `yaml:"local_path"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
}

// DatabaseConfig configures the history store. An empty URL disables it.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Weights: map[string]float64{},
			TopN:    scoring.DefaultTopN,
		},
		Remote: RemoteConfig{
			URL:             predict.DefaultURL,
			DebounceMS:      int(predict.DefaultDebounceDelay / time.Millisecond),
			BreakerFailures: 5,
			BreakerCooldown: 30,
			RatePerSecond:   2,
			Burst:           1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Backend:   "local",
			LocalPath: UploadDir(),
		},
	}
}

// ServerCacheSize bounds the score cache of long-running servers when no
// cache size is configured: 4096 samples across every catalog crop.
const ServerCacheSize = 4096 * 96

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	return LoadOnto(path, DefaultConfig())
}

// LoadOnto reads a config file over base. Keys absent from the file keep
// the values in base. If the file does not exist, base is returned.
func LoadOnto(path string, base *Config) (*Config, error) {
	cfg := base

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// FindConfigFile looks for .cropwise/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".cropwise", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns ~/.cache/cropwise.
func CacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "cropwise")
}

// UploadDir returns the default local image storage directory.
func UploadDir() string {
	return filepath.Join(CacheDir(), "uploads")
}

// Catalog loads the configured catalog, or the embedded one.
func (s ScoringConfig) Catalog() (*catalog.Catalog, error) {
	if s.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(s.CatalogPath)
}

// Scorer builds a scorer over cat with the configured weights and cache.
func (s ScoringConfig) Scorer(cat *catalog.Catalog) (*scoring.Scorer, error) {
	w, err := scoring.DefaultWeights().WithOverrides(s.Weights)
	if err != nil {
		return nil, err
	}
	if w.Sum() == 0 {
		return nil, fmt.Errorf("scoring weights sum to zero")
	}

	var cache scoring.ScoreCache = scoring.NewMapCache()
	if s.CacheSize > 0 {
		cache = scoring.NewLRUCache(s.CacheSize)
	}
	return scoring.NewScorer(cat, scoring.WithWeights(w), scoring.WithCache(cache)), nil
}

// Ranker builds the catalog, scorer and ranker in one step.
func (s ScoringConfig) Ranker() (*scoring.Ranker, error) {
	cat, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	scorer, err := s.Scorer(cat)
	if err != nil {
		return nil, err
	}
	return scoring.NewRanker(scorer, scoring.WithTopN(s.TopN)), nil
}

// ClientConfig converts to the remote client's settings.
func (r RemoteConfig) ClientConfig() predict.ClientConfig {
	return predict.ClientConfig{
		URL:             r.URL,
		Timeout:         time.Duration(r.Timeout) * time.Second,
		BreakerFailures: r.BreakerFailures,
		BreakerCooldown: time.Duration(r.BreakerCooldown) * time.Second,
		RatePerSecond:   r.RatePerSecond,
		Burst:           r.Burst,
	}
}

// DebounceDelay returns the settling delay for debounced recommendations.
func (r RemoteConfig) DebounceDelay() time.Duration {
	return time.Duration(r.DebounceMS) * time.Millisecond
}

// Adapter builds the recommendation adapter. The remote client is only
// attached when enabled.
func (c *Config) Adapter() (*predict.Adapter, error) {
	ranker, err := c.Scoring.Ranker()
	if err != nil {
		return nil, err
	}
	var remote predict.Predictor
	if c.Remote.Enabled {
		remote = predict.NewClient(c.Remote.ClientConfig(), ranker.Scorer().Catalog())
	}
	return predict.NewAdapter(ranker, remote), nil
}

// Detector builds the disease detector.
func (d DiseaseConfig) Detector() (*disease.Detector, error) {
	table := disease.DefaultTable()
	if d.TablePath != "" {
		var err error
		if table, err = disease.LoadTable(d.TablePath); err != nil {
			return nil, err
		}
	}
	return disease.NewDetector(table, disease.WithDelay(time.Duration(d.DelayMS)*time.Millisecond)), nil
}
