// Command murmur captures audio from the configured sources, segments it
// into utterances and prints every transcript to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/murmur/internal/app"
	"github.com/MrWong99/murmur/internal/config"
	"github.com/MrWong99/murmur/internal/health"
	"github.com/MrWong99/murmur/internal/observe"
	"github.com/MrWong99/murmur/internal/transcribe"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "murmur.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "reload the log level when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "murmur: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "murmur: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("murmur starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)

	providers, err := buildProviders(ctx, cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(cfg, providers,
		app.WithMetrics(metrics),
		app.WithResultHandler(printResult),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		closeProviders(providers)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	if *watch {
		w, err := config.NewWatcher(*configPath, config.WithOnReload(func(r config.Reload) {
			if r.Diff.LogLevelChanged {
				level.Set(slogLevel(r.Diff.NewLogLevel))
				slog.Info("log level changed", "level", r.Diff.NewLogLevel)
			}
			if len(r.Diff.RestartRequired) > 0 {
				slog.Warn("config sections changed, restart to apply", "sections", r.Diff.RestartRequired)
			}
		}))
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			go func() { _ = w.Run(ctx) }()
		}
	}

	// ── Metrics and health listener ───────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		srv, err = startServer(ctx, cfg.Server.ListenAddr, application, metrics)
		if err != nil {
			slog.Error("failed to start listener", "addr", cfg.Server.ListenAddr, "err", err)
			_ = application.Shutdown(context.Background())
			return 1
		}
	}

	slog.Info("capturing, press Ctrl+C to stop")

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("listener shutdown error", "err", err)
		}
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	slog.Info("goodbye")
	return code
}

// printResult writes one transcript line to stdout.
func printResult(r transcribe.Result) {
	fmt.Printf("[%s] %s\n", r.Source, r.Text)
}

// startServer serves /metrics, /healthz, /readyz and /statusz on addr.
func startServer(ctx context.Context, addr string, a *app.App, m *observe.Metrics) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(a.Checkers(), health.WithStatus(func() any { return a.Status() })).Register(mux)

	srv := &http.Server{
		Handler:           observe.Middleware(m, observe.WithQuietPaths("/metrics", "/healthz", "/readyz"))(mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listener failed", "err", err)
		}
	}()
	slog.Info("listening", "addr", ln.Addr().String())
	return srv, nil
}

// slogLevel converts a config.LogLevel to a slog.Level.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
