package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/stormslide/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/stormslide/internal/adapter/kafka"
	"github.com/couchcryptid/stormslide/internal/adapter/mapbox"
	"github.com/couchcryptid/stormslide/internal/adapter/stormapi"
	"github.com/couchcryptid/stormslide/internal/config"
	"github.com/couchcryptid/stormslide/internal/domain"
	"github.com/couchcryptid/stormslide/internal/observability"
	"github.com/couchcryptid/stormslide/internal/render"
	"github.com/couchcryptid/stormslide/internal/session"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	style, err := config.LoadStyleSheet(cfg.StyleFile)
	if err != nil {
		logger.Error("failed to load style sheet", "error", err)
		os.Exit(1)
	}

	// Place names in popups are feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled",
			"cache_size", cfg.MapboxCacheSize,
			"timeout", cfg.MapboxTimeout,
			"rate_limit", cfg.MapboxRateLimit,
		)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	sessionID := uuid.NewString()
	mem := render.NewMemoryMap()

	var (
		sink   render.Map = mem
		writer *kafkaadapter.MapWriter
	)
	if cfg.MapSink == config.SinkKafka {
		writer = kafkaadapter.NewMapWriter(cfg, sessionID, clock, logger)
		sink = render.Tee{mem, writer}
		logger.Info("publishing map mutations", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaMapTopic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := session.New(ctx, session.Deps{
		ID:       sessionID,
		Source:   stormapi.NewClient(cfg, clock, logger, metrics),
		Map:      sink,
		Geocoder: geocoder,
		Clock:    clock,
		Logger:   logger,
		Metrics:  metrics,
	}, session.OptionsFromConfig(cfg, style))
	if err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, sess, mem, sess, logger)

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sess.Dispose()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
