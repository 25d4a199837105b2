package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-hazard-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const defaultMapboxCacheSize = 1000

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// EventWeight scales fault activity in the event likelihood score.
	EventWeight float64

	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset. Any malformed value is an error.
func Load() (*Config, error) {
	cfg := &Config{
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-seismic-sites"),
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "assessed-seismic-hazard"),
		KafkaGroupID:     sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "quake-hazard-etl"),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	}

	for _, load := range []func(*Config) error{loadRuntime, loadScoring, loadMapbox} {
		if err := load(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadRuntime reads shutdown and batching settings through the shared parsers.
func loadRuntime(cfg *Config) error {
	var err error
	if cfg.ShutdownTimeout, err = sharedcfg.ParseShutdownTimeout(); err != nil {
		return err
	}
	if cfg.BatchSize, err = sharedcfg.ParseBatchSize(); err != nil {
		return err
	}
	if cfg.BatchFlushInterval, err = sharedcfg.ParseBatchFlushInterval(); err != nil {
		return err
	}
	return nil
}

func loadScoring(cfg *Config) error {
	cfg.EventWeight = domain.DefaultEventWeight
	s := os.Getenv("EVENT_WEIGHT")
	if s == "" {
		return nil
	}
	w, err := strconv.ParseFloat(s, 64)
	if err != nil || w <= 0 || math.IsInf(w, 0) {
		return fmt.Errorf("invalid EVENT_WEIGHT %q: must be a positive number", s)
	}
	cfg.EventWeight = w
	return nil
}

// loadMapbox enables geocoding whenever a token is present unless
// MAPBOX_ENABLED says otherwise. An unusable cache size falls back to the default.
func loadMapbox(cfg *Config) error {
	timeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || timeout <= 0 {
		return errors.New("invalid MAPBOX_TIMEOUT")
	}
	cfg.MapboxTimeout = timeout

	cfg.MapboxToken = os.Getenv("MAPBOX_TOKEN")
	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MAPBOX_ENABLED %q: %w", v, err)
		}
		cfg.MapboxEnabled = enabled
	}

	cfg.MapboxCacheSize = defaultMapboxCacheSize
	if n, err := strconv.Atoi(os.Getenv("MAPBOX_CACHE_SIZE")); err == nil && n > 0 {
		cfg.MapboxCacheSize = n
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case len(c.KafkaBrokers) == 0:
		return errors.New("KAFKA_BROKERS is required")
	case c.KafkaSourceTopic == "":
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	case c.KafkaSinkTopic == "":
		return errors.New("KAFKA_SINK_TOPIC is required")
	case c.KafkaSourceTopic == c.KafkaSinkTopic:
		return errors.New("KAFKA_SOURCE_TOPIC and KAFKA_SINK_TOPIC must differ")
	case c.MapboxEnabled && c.MapboxToken == "":
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}
