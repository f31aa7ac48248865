package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/stormslide/internal/domain"
)

// Map sinks selectable via MAP_SINK.
const (
	SinkMemory = "memory"
	SinkKafka  = "kafka"
)

// minTransition is the fastest playback speed accepted.
const minTransition = 50 * time.Millisecond

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream storm data API.
	APIBaseURL      string
	TornadoesPath   string
	RadarPath       string
	WeatherPath     string
	UpstreamTimeout time.Duration
	RefreshDebounce time.Duration
	RefreshInterval time.Duration

	// Playback and overlay defaults.
	Transition     time.Duration
	Loop           bool
	Autoplay       bool
	OverlayOpacity float64
	OverlayBounds  domain.GeoBounds
	StyleFile      string

	// Map mutation sinks.
	MapSink       string
	KafkaBrokers  []string
	KafkaMapTopic string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxRateLimit float64 // requests per second
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	upstreamTimeout, err := parsePositiveDuration("UPSTREAM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	debounce, err := parsePositiveDuration("REFRESH_DEBOUNCE", "1s")
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration("REFRESH_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	transition, err := parsePositiveDuration("PLAYBACK_TRANSITION", "200ms")
	if err != nil {
		return nil, err
	}
	if transition < minTransition {
		return nil, fmt.Errorf("invalid PLAYBACK_TRANSITION: must be at least %s", minTransition)
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	loop, err := parseBool("PLAYBACK_LOOP", true)
	if err != nil {
		return nil, err
	}
	autoplay, err := parseBool("PLAYBACK_AUTOPLAY", true)
	if err != nil {
		return nil, err
	}

	opacity, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("OVERLAY_OPACITY", "0.8"), 64)
	if err != nil || opacity < 0 || opacity > 1 {
		return nil, errors.New("invalid OVERLAY_OPACITY: must be between 0 and 1")
	}

	bounds, err := ParseBounds(sharedcfg.EnvOrDefault("OVERLAY_BOUNDS", "25,-125,50,-66"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERLAY_BOUNDS: %w", err)
	}

	mapboxRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MAPBOX_RATE_LIMIT", "10"), 64)
	if err != nil || mapboxRate <= 0 {
		return nil, errors.New("invalid MAPBOX_RATE_LIMIT: must be a positive number")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		APIBaseURL:      strings.TrimRight(sharedcfg.EnvOrDefault("STORM_API_BASE_URL", "http://localhost:5000"), "/"),
		TornadoesPath:   sharedcfg.EnvOrDefault("TORNADOES_PATH", "/tornadoes"),
		RadarPath:       sharedcfg.EnvOrDefault("RADAR_PATH", "/radar"),
		WeatherPath:     sharedcfg.EnvOrDefault("WEATHER_PATH", "/proxy-weather"),
		UpstreamTimeout: upstreamTimeout,
		RefreshDebounce: debounce,
		RefreshInterval: interval,

		Transition:     transition,
		Loop:           loop,
		Autoplay:       autoplay,
		OverlayOpacity: opacity,
		OverlayBounds:  bounds,
		StyleFile:      os.Getenv("STYLE_FILE"),

		MapSink:       strings.ToLower(sharedcfg.EnvOrDefault("MAP_SINK", SinkMemory)),
		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaMapTopic: sharedcfg.EnvOrDefault("KAFKA_MAP_TOPIC", "map-mutations"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
		MapboxRateLimit: mapboxRate,
	}

	if cfg.MapSink != SinkMemory && cfg.MapSink != SinkKafka {
		return nil, fmt.Errorf("invalid MAP_SINK %q: must be %q or %q", cfg.MapSink, SinkMemory, SinkKafka)
	}
	if cfg.MapSink == SinkKafka {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when MAP_SINK=kafka")
		}
		if cfg.KafkaMapTopic == "" {
			return nil, errors.New("KAFKA_MAP_TOPIC is required when MAP_SINK=kafka")
		}
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// ParseBounds reads "south,west,north,east".
func ParseBounds(s string) (domain.GeoBounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.GeoBounds{}, fmt.Errorf("want 4 comma-separated values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.GeoBounds{}, fmt.Errorf("value %d: %w", i+1, err)
		}
		v[i] = f
	}
	b := domain.GeoBounds{South: v[0], West: v[1], North: v[2], East: v[3]}
	if !b.Valid() {
		return domain.GeoBounds{}, fmt.Errorf("bounds %s out of range", b)
	}
	return b, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := parseDuration(key, fallback)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
