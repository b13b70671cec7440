package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/handsomefox/moviescope/internal/config"
	"github.com/handsomefox/moviescope/internal/handlers"
	"github.com/handsomefox/moviescope/internal/logger"
	"github.com/handsomefox/moviescope/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web view and JSON API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.close(context.Background())

	var status handlers.StoreStatus
	if cfg.Counters.Backend != config.BackendNone {
		status = d.counters
	}
	h, err := handlers.New(&handlers.Config{
		App:       d.app,
		Store:     status,
		ImageBase: cfg.TMDB.ImageBase,
	})
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	dist, err := web.Dist()
	if err != nil {
		return fmt.Errorf("load web view: %w", err)
	}
	opts := handlers.RouterOptions{Logger: log, Dist: dist}
	if d.prom != nil {
		opts.Metrics = d.prom
		opts.MetricsHandler = d.prom.Handler()
	}
	router, err := handlers.NewRouter(h, opts)
	if err != nil {
		return err
	}

	loaded := make(chan struct{})
	go func() {
		defer close(loaded)
		if err := d.app.Load(ctx); err != nil {
			log.Warn("Initial load incomplete", logger.Error(err))
		}
	}()
	// Load must return before deps are closed.
	defer func() {
		stop()
		<-loaded
	}()

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", server.Addr, "backend", cfg.Counters.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
