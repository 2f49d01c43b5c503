package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/catenarymaps/spruce-sync/internal/config"
	"github.com/catenarymaps/spruce-sync/internal/connection"
	"github.com/catenarymaps/spruce-sync/internal/database"
	"github.com/catenarymaps/spruce-sync/internal/health"
	"github.com/catenarymaps/spruce-sync/internal/mapview"
	"github.com/catenarymaps/spruce-sync/internal/recorder"
	"github.com/catenarymaps/spruce-sync/internal/subscription"
	"github.com/catenarymaps/spruce-sync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/spruce-tap.local.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	partition := flag.String("partition", "", "trip partition to follow (overrides config)")
	tripParams := flag.String("trip", "", "trip params as a JSON object (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Product, version.String())
		return
	}

	// Missing env files are fine; the config may not reference any variables.
	_ = godotenv.Load(*envFile)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	if err := applyTripFlags(cfg, *partition, *tripParams); err != nil {
		slog.Error("invalid trip flags", "error", err)
		os.Exit(1)
	}

	session := uuid.New()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With("session_id", session)
	slog.SetDefault(logger)

	logger.Info("starting spruce-tap",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"url", cfg.Connection.URL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Supervised socket
	connCfg := connection.Config{
		URL:              cfg.Connection.URL,
		HandshakeTimeout: cfg.Connection.HandshakeTimeout,
		WriteTimeout:     cfg.Connection.WriteTimeout,
		Header: http.Header{
			"User-Agent":   []string{version.UserAgent()},
			"X-Session-Id": []string{session.String()},
		},
	}
	supervisor := connection.NewSupervisor(connCfg, nil, logger.With("component", "connection"))
	defer supervisor.Close()

	unwatchState := supervisor.States().Subscribe(func(s connection.State) {
		logger.Info("connection state", "state", s)
	})
	defer unwatchState()

	mux := subscription.New(supervisor, logger.With("component", "subscription"))
	defer mux.Close()

	unwatch := logValues(mux, logger)
	defer unwatch()

	// Optional frame archive
	if cfg.Database.Enabled {
		rec, stop, err := startRecorder(ctx, cfg, session, logger)
		if err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}
		defer stop()
		unwatchRec := rec.Watch(mux)
		defer unwatchRec()
	}

	// Health server
	var healthServer *http.Server
	if cfg.Health.Port > 0 {
		healthServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           health.NewHandler(supervisor, mux, session).Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	if cfg.Trip.Partition != "" {
		mux.SubscribeTrip(cfg.Trip.Partition, cfg.Trip.Params)
	} else {
		supervisor.EnsureConnection()
	}

	if cfg.MapView.Enabled {
		go runMapView(ctx, cfg.MapView, mux, logger.With("component", "mapview"))
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		healthServer.Shutdown(shutdownCtx)
	}

	logger.Info("spruce-tap stopped")
}

// applyTripFlags lets command-line flags override the configured trip.
func applyTripFlags(cfg *config.TapConfig, partition, params string) error {
	if partition != "" {
		cfg.Trip.Partition = partition
	}
	if params == "" {
		return nil
	}
	var p map[string]any
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return fmt.Errorf("parse -trip: %w", err)
	}
	if cfg.Trip.Partition == "" {
		return fmt.Errorf("-trip requires a partition")
	}
	cfg.Trip.Params = p
	return nil
}

func startRecorder(ctx context.Context, cfg *config.TapConfig, session uuid.UUID, logger *slog.Logger) (*recorder.Recorder, func(), error) {
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	recCfg := recorder.DefaultConfig()
	recCfg.BatchSize = cfg.Recorder.BatchSize
	recCfg.FlushInterval = cfg.Recorder.FlushInterval
	recCfg.BufferSize = 4 * cfg.Recorder.BatchSize

	rec := recorder.New(recCfg, session, pool, logger.With("component", "recorder"))
	if err := rec.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := rec.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("start recorder: %w", err)
	}

	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rec.Stop(stopCtx)
		stats := rec.Stats()
		logger.Info("recorder stats",
			"inserts", stats.Inserts,
			"conflicts", stats.Conflicts,
			"errors", stats.Errors,
			"dropped", stats.Dropped,
		)
		pool.Close()
	}
	return rec, stop, nil
}

// runMapView pushes the configured viewport on every tick until ctx ends.
func runMapView(ctx context.Context, cfg config.MapViewConfig, mux *subscription.Multiplexer, logger *slog.Logger) {
	feeds := mapview.FeedLookup(cfg.Feeds)
	if len(feeds) == 0 {
		feeds = make(mapview.FeedLookup, len(cfg.Partitions))
		for _, p := range cfg.Partitions {
			feeds[p] = []string{p}
		}
	}

	syncer := mapview.NewSyncer(
		mapview.StaticCamera{View: cfg.Viewport, Z: cfg.Zoom},
		mapview.StaticScreen(cfg.Screen),
		feeds,
		mux,
		logger,
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		syncer.Sync(cfg.Layers, cfg.Partitions)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// logValues logs every inbound value the multiplexer publishes.
func logValues(mux *subscription.Multiplexer, logger *slog.Logger) func() {
	unsubs := []func(){
		mux.TripSnapshot().Subscribe(func(v json.RawMessage) {
			if v != nil {
				logger.Info("trip snapshot", "bytes", len(v))
			}
		}),
		mux.TripUpdate().Subscribe(func(v json.RawMessage) {
			if v != nil {
				logger.Info("trip update", "bytes", len(v))
			}
		}),
		mux.MapUpdate().Subscribe(func(v json.RawMessage) {
			if v != nil {
				logger.Debug("map update", "bytes", len(v))
			}
		}),
		mux.TripError().Subscribe(func(msg string) {
			if msg != "" {
				logger.Warn("trip error", "message", msg)
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
