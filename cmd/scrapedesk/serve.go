package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/scrapedesk/api"
	"github.com/use-agent/scrapedesk/backend"
	"github.com/use-agent/scrapedesk/cache"
	"github.com/use-agent/scrapedesk/form"
	"github.com/use-agent/scrapedesk/history"
	"github.com/use-agent/scrapedesk/operation"
	"github.com/use-agent/scrapedesk/preview"
	"github.com/use-agent/scrapedesk/runner"
	"github.com/use-agent/scrapedesk/webhook"
)

func init() {
	serveCmd.Flags().StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "listen host")
	serveCmd.Flags().IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "listen port")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API until SIGINT or SIGTERM.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	slog.Info("scrapedesk starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"backend", cfg.Backend.BaseURL,
	)

	// ── 1. Backend client ───────────────────────────────────────────
	be := backend.New(cfg.Backend)

	// ── 2. Operation store, saved form and runner ───────────────────
	forms := form.Open(cfg.Form.StatePath)
	notifier := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret)
	if notifier.Enabled() {
		slog.Info("webhook delivery enabled", "url", cfg.Webhook.URL)
	}
	run := runner.New(be, operation.NewStore(),
		runner.WithSessions(forms),
		runner.WithNotifier(notifier),
	)
	defer run.Close()

	// ── 3. History browser with detail cache ────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()
	hist := history.New(be, cc, cfg.History.PageSize)

	// ── 4. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(api.Deps{
		Runner:   run,
		Forms:    forms,
		History:  hist,
		Renderer: preview.NewRenderer(),
	}, cfg, startTime)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// run.Close() runs via defer and aborts outstanding backend calls.
	slog.Info("scrapedesk stopped")
	return nil
}
