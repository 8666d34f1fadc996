package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cropwise/cropwise/internal/advisory"
	"github.com/cropwise/cropwise/internal/api"
	"github.com/cropwise/cropwise/internal/logging"
	"github.com/cropwise/cropwise/internal/metrics"
	"github.com/cropwise/cropwise/pkg/config"
)

func newServeCmd(g *globalOpts) *cobra.Command {
	var (
		port   string
		remote bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a local API server",
		Long: `Starts the Cropwise REST API on localhost using the local config.
Uploaded images go to the configured storage backend. History is not
recorded; run cropwised with DATABASE_URL for that.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g, port, remote)
		},
	}

	cmd.Flags().StringVar(&port, "port", "7700", "Port to serve on")
	cmd.Flags().BoolVar(&remote, "remote", false, "Try the remote prediction service first")
	return cmd
}

func runServe(ctx context.Context, g *globalOpts, port string, remote bool) error {
	cfg := *g.cfg
	cfg.Remote.Enabled = cfg.Remote.Enabled || remote
	if cfg.Scoring.CacheSize <= 0 {
		cfg.Scoring.CacheSize = config.ServerCacheSize
	}

	adapter, err := cfg.Adapter()
	if err != nil {
		return fmt.Errorf("building recommender: %w", err)
	}
	detector, err := cfg.Disease.Detector()
	if err != nil {
		return fmt.Errorf("loading disease table: %w", err)
	}
	storage, err := advisory.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	svc := advisory.NewService(adapter, detector,
		advisory.WithStorage(storage),
		advisory.WithSessionDebounce(cfg.Remote.DebounceDelay()),
	)
	defer svc.Close()

	if err := metrics.RegisterCacheCollector(adapter.Ranker().Scorer().CacheStats); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           api.NewHandler(svc).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "Cropwise API server\n")
	fmt.Fprintf(os.Stderr, "  Storage:    %s\n", cfg.Storage.Backend)
	fmt.Fprintf(os.Stderr, "  Remote:     %t\n", adapter.RemoteEnabled())
	fmt.Fprintf(os.Stderr, "  Listening:  http://localhost:%s\n", port)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
