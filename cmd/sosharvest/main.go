package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/sosharvest/api"
	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/metrics"
	"github.com/use-agent/sosharvest/models"
	"github.com/use-agent/sosharvest/runner"
)

const usage = `usage: sosharvest [run|serve] [flags]

  run    harvest once and exit (default)
  serve  start the HTTP API

Configuration comes from SOSH_* environment variables; -input overlays a
JSON or YAML run input document.
`

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "run" || args[0] == "serve") {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	inputPath := fs.String("input", "", "path to a run input file (JSON or YAML)")
	_ = fs.Parse(args)

	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	var in *config.Input
	if *inputPath != "" {
		var err error
		if in, err = config.LoadInput(*inputPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	// ── 3. Runner ───────────────────────────────────────────────────
	m := metrics.NewMetrics()
	r := runner.New(cfg, runner.WithMetrics(m), runner.WithLogger(slog.Default()))

	switch cmd {
	case "serve":
		os.Exit(serve(cfg, r, m))
	default:
		os.Exit(runOnce(r, in))
	}
}

// runOnce harvests once. The exit code is 0 only when RESULT.json reports
// ok:true.
func runOnce(r *runner.Runner, in *config.Input) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status, err := r.Run(ctx, in)
	if err != nil {
		if status == nil {
			slog.Error("harvest did not start", "error", err)
			return 1
		}
		he := models.AsHarvestError(err)
		slog.Error("harvest failed",
			"run_id", status.ID,
			"checkpoint", status.Checkpoint,
			"code", he.Code,
			"reason", he.Message,
		)
		return 1
	}
	slog.Info("harvest succeeded",
		"run_id", status.ID,
		"total", *status.Result.Total,
		"pages_processed", *status.Result.PagesProcessed,
	)
	return 0
}

func serve(cfg *config.Config, r *runner.Runner, m *metrics.Metrics) int {
	slog.Info("sosharvest starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"auth", cfg.Auth.Enabled,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled without API keys; the API is open")
	}

	router := api.NewRouter(r, m.Registry, cfg, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	// An active run is cancelled; it still records its failure checkpoint.
	if err := r.Shutdown(ctx); err != nil {
		slog.Error("active run did not stop in time", "error", err)
		return 1
	}
	slog.Info("sosharvest stopped")
	return 0
}

// initLogger configures slog based on the LogConfig.
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

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
