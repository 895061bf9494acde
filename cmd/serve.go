package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetobserver/fleetobserver/internal/config"
	"github.com/fleetobserver/fleetobserver/internal/controller"
	"github.com/fleetobserver/fleetobserver/internal/httpapi"
	"github.com/fleetobserver/fleetobserver/internal/hub"
	"github.com/fleetobserver/fleetobserver/internal/observability"
	"github.com/fleetobserver/fleetobserver/internal/preferences"
	"github.com/fleetobserver/fleetobserver/internal/sqlcache"
	"github.com/fleetobserver/fleetobserver/internal/transport"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the fleet observer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

// runServe wires every component together and blocks until SIGINT/SIGTERM:
// load config, construct the component graph, start background work, then
// block on a signal channel that drives an explicit, ordered shutdown
// sequence.
func runServe() error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled: failed to initialize exporter", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	var cache *sqlcache.Cache
	if cfg.Cache.Enabled {
		cache, err = sqlcache.Open(cfg.Cache.Path)
		if err != nil {
			logger.Warn("summary cache disabled: failed to open", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	prefs, err := preferences.Load(cfg.Sessions.PreferencesPath)
	if err != nil {
		logger.Error("failed to load preferences", "error", err)
		os.Exit(1)
	}

	transportServer := transport.NewServer(logger, cfg.Server.AllowedOrigins)

	h := hub.New(cfg.Sessions.BasePaths, time.Duration(cfg.Sessions.WatchDebounceMS)*time.Millisecond, transportServer, logger)
	if err := h.Start(); err != nil {
		logger.Error("failed to start session watcher", "error", err)
		os.Exit(1)
	}
	defer h.Stop()

	ctrl := controller.New(cfg.Agent.BinaryPath, transportServer.Broadcast, logger)

	api := httpapi.New(cfg.Sessions.BasePaths, prefs, h, ctrl, cache, logger)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	mux.HandleFunc("GET /ws", transportServer.HandleWebSocket)
	if cfg.Server.StaticDir != "" {
		mux.Handle("/", httpapi.NewStaticHandler(cfg.Server.StaticDir))
	}

	addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: httpapi.LoggingMiddleware(logger, mux)}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("fleet observer listening", "addr", addr, "basePaths", cfg.Sessions.BasePaths)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := <-sigCh
	logger.Info("graceful shutdown initiated", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}

	transportServer.Shutdown()
	ctrl.Shutdown()

	return nil
}
