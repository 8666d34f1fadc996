// Command cropwised is the Cropwise platform service.
// It serves the REST API, Prometheus metrics and a health check, with
// optional Postgres history.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cropwise/cropwise/internal/advisory"
	"github.com/cropwise/cropwise/internal/api"
	"github.com/cropwise/cropwise/internal/history"
	"github.com/cropwise/cropwise/internal/logging"
	"github.com/cropwise/cropwise/internal/metrics"
	"github.com/cropwise/cropwise/internal/platform"
	"github.com/cropwise/cropwise/pkg/config"
)

type daemonConfig struct {
	Port        string
	DatabaseURL string
	APIKey      string
	Config      *config.Config
}

// serverDefaults are the daemon's base settings: JSON logs and a bounded
// score cache.
func serverDefaults() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Scoring.CacheSize = config.ServerCacheSize
	return cfg
}

// loadConfig layers environment variables over the YAML config named by
// CROPWISE_CONFIG, or the server defaults.
func loadConfig() (daemonConfig, error) {
	cfg := serverDefaults()
	if path := os.Getenv("CROPWISE_CONFIG"); path != "" {
		var err error
		if cfg, err = config.LoadOnto(path, cfg); err != nil {
			return daemonConfig{}, err
		}
	}

	cfg.Logging.Level = envOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = envOrDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Storage.Backend = envOrDefault("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Bucket = envOrDefault("STORAGE_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.LocalPath = envOrDefault("LOCAL_STORAGE_PATH", cfg.Storage.LocalPath)
	cfg.Storage.Region = envOrDefault("AWS_REGION", cfg.Storage.Region)
	cfg.Storage.Endpoint = envOrDefault("S3_ENDPOINT", cfg.Storage.Endpoint)
	if url := os.Getenv("REMOTE_PREDICT_URL"); url != "" {
		cfg.Remote.Enabled = true
		cfg.Remote.URL = url
	}
	if v := os.Getenv("SCORE_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return daemonConfig{}, errors.New("SCORE_CACHE_SIZE must be an integer")
		}
		cfg.Scoring.CacheSize = n
	}

	return daemonConfig{
		Port:        envOrDefault("PORT", "8080"),
		DatabaseURL: envOrDefault("DATABASE_URL", cfg.Database.URL),
		APIKey:      os.Getenv("API_KEY"),
		Config:      cfg,
	}, nil
}

func main() {
	dc, err := loadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	cfg := dc.Config

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Timestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	adapter, err := cfg.Adapter()
	if err != nil {
		logging.Fatal().Err(err).Msg("build recommender")
	}
	detector, err := cfg.Disease.Detector()
	if err != nil {
		logging.Fatal().Err(err).Msg("load disease table")
	}
	storage, err := advisory.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("open storage")
	}

	opts := []advisory.Option{
		advisory.WithStorage(storage),
		advisory.WithSessionDebounce(cfg.Remote.DebounceDelay()),
	}
	apiOpts := []api.Option{api.WithAPIKey(dc.APIKey)}

	var db *sql.DB
	if dc.DatabaseURL != "" {
		db, err = platform.Open(ctx, dc.DatabaseURL)
		if err != nil {
			logging.Fatal().Err(err).Msg("open database")
		}
		defer db.Close()

		historySvc := history.NewService(db)
		opts = append(opts, advisory.WithRecorder(historySvc))
		apiOpts = append(apiOpts, api.WithHistory(historySvc), api.WithHealthCheck(db.PingContext))
	} else {
		logging.Warn().Msg("DATABASE_URL not set, history disabled")
	}

	svc := advisory.NewService(adapter, detector, opts...)
	defer svc.Close()

	if err := metrics.RegisterCacheCollector(adapter.Ranker().Scorer().CacheStats); err != nil {
		logging.Fatal().Err(err).Msg("register cache metrics")
	}

	srv := &http.Server{
		Addr:              ":" + dc.Port,
		Handler:           api.NewHandler(svc, apiOpts...).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logging.Info().
			Str("port", dc.Port).
			Bool("remote", adapter.RemoteEnabled()).
			Bool("history", db != nil).
			Str("storage", cfg.Storage.Backend).
			Msg("starting cropwised")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown")
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
