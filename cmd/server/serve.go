package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vyuha/vyuha-scene/internal/api"
	"github.com/vyuha/vyuha-scene/internal/config"
	"github.com/vyuha/vyuha-scene/internal/events"
	"github.com/vyuha/vyuha-scene/internal/scene"
	"github.com/vyuha/vyuha-scene/internal/source"
)

var serveCmd = withConfigFlags(&cobra.Command{
	Use:     "serve",
	Short:   "Run the HTTP, SSE and view socket server",
	GroupID: "server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
})

func init() {
	rootCmd.AddCommand(serveCmd)
}

// publisher builds the outbound event chain: SSE always, NATS when
// configured. A NATS failure at startup only disables NATS.
func publisher(cfg *config.Config, sse *api.SSEBroadcaster) events.Publisher {
	if cfg.NATSURL == "" {
		return sse
	}
	nc, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		slog.Warn("NATS unavailable, events limited to SSE", "url", cfg.NATSURL, "error", err)
		return sse
	}
	slog.Info("NATS publisher connected", "url", cfg.NATSURL)
	return events.Multi{sse, nc}
}

func serve(cfg *config.Config) error {
	// ---- Storage ---------------------------------------------------------
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	stats, err := store.GetCatalogStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalogue: %w", err)
	}

	// ---- Events ----------------------------------------------------------
	sse := api.NewSSEBroadcaster()
	pub := publisher(cfg, sse)

	// ---- HTTP Server -----------------------------------------------------
	srv := api.NewServer(store, sse, pub, api.Options{
		Scene: scene.Options{
			FrameRate:    cfg.Scene.FrameRate,
			MaxNodes:     cfg.Scene.MaxNodes,
			MaxRings:     cfg.Scene.MaxRings,
			HitRadius:    cfg.Scene.HitRadius,
			LayoutBudget: cfg.Scene.LayoutBudget,
		},
		Layout:       cfg.Layout,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		PointerRate:  cfg.Scene.PointerRate,
		PointerBurst: cfg.Scene.PointerBurst,
	})

	// ---- Temporal replay (optional) --------------------------------------
	var watcher *source.Watcher
	if cfg.ReplayDir != "" {
		watcher = source.NewWatcher(cfg.ReplayDir, srv.Ingest, source.DefaultDebounce)
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("replay watcher disabled", "dir", cfg.ReplayDir, "error", err)
			watcher = nil
		} else {
			srv.SetReplayWatcher(watcher)
		}
	}

	// ---- Startup banner --------------------------------------------------
	replay := "disabled"
	if watcher != nil {
		replay = cfg.ReplayDir
	}
	banner := fmt.Sprintf(`
═══════════════════════════════
 VYUHA SCENE — 3D Graph Views
 DB:        %s
 Port:      %d
 Snapshots: %d
 Replay:    %s
═══════════════════════════════`, cfg.DBPath, cfg.Port, stats.Snapshots, replay)
	fmt.Println(banner)

	slog.Info("vyuha-scene starting",
		"db_path", cfg.DBPath,
		"port", cfg.Port,
		"snapshots", stats.Snapshots,
		"nodes", stats.TotalNodes,
		"replay_dir", cfg.ReplayDir,
	)

	srv.RegisterRoutes()

	addr := fmt.Sprintf(":%d", cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ---- Graceful shutdown -----------------------------------------------
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case runErr = <-errCh:
		slog.Error("HTTP server error", "error", runErr)
	}

	stop()
	if watcher != nil {
		watcher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := pub.Close(); err != nil {
		slog.Error("event publisher close error", "error", err)
	}
	if err := store.Close(); err != nil {
		slog.Error("storage close error", "error", err)
	}

	slog.Info("vyuha-scene shutdown complete")
	return runErr
}
