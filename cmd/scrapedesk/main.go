package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/scrapedesk/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var cfg = config.Load()

var rootCmd = &cobra.Command{
	Use:           "scrapedesk",
	Short:         "scrapedesk drives a scraping backend from the terminal or over HTTP.",
	Version:       config.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger(cfg.Log)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfg.Backend.BaseURL, "backend", cfg.Backend.BaseURL, "scraping backend base URL")
	rootCmd.PersistentFlags().StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// initLogger configures slog based on the LogConfig. Logs go to stderr so
// command output on stdout stays clean; a rotated file is added when
// cfg.File is set.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}
