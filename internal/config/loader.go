package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
	dotEnv     []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "REELSIGHT",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "REELSIGHT",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithDotEnv loads the given .env files before reading the environment.
// Missing files are ignored.
func (l *Loader) WithDotEnv(paths ...string) *Loader {
	l.dotEnv = append(l.dotEnv, paths...)
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (REELSIGHT_*), including values from .env
// 3. Project config (.reelsight/config.yaml in current directory)
// 4. User config (~/.config/reelsight/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}

	// Set defaults first
	l.setDefaults()

	// Configure environment variable reading
	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// Config file setup
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")

		// Project config takes precedence over user config
		l.v.AddConfigPath(".reelsight")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "reelsight"))
		}
	}

	// Read config file (ignore not found)
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) loadDotEnv() error {
	for _, path := range l.dotEnv {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Watch reloads the config file on change and passes the new configuration
// to onChange. Reloads that fail to unmarshal or validate are reported to
// onError and otherwise ignored.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := l.unmarshal()
		if err == nil {
			err = ValidateConfig(cfg)
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	// Log defaults
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	// Server defaults
	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 8080)
	l.v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	l.v.SetDefault("server.request_timeout", "60s")
	l.v.SetDefault("server.shutdown_timeout", "15s")
	l.v.SetDefault("server.evict_schedule", "@every 10m")
	l.v.SetDefault("server.evict_after", "1h")

	// Narrative provider (OpenAI-compatible Gemini endpoint)
	l.v.SetDefault("providers.narrative.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	l.v.SetDefault("providers.narrative.model", "gemini-1.5-pro")
	l.v.SetDefault("providers.narrative.max_tokens", 8192)
	l.v.SetDefault("providers.narrative.temperature", 0.4)
	l.v.SetDefault("providers.narrative.timeout", "5m")

	// Vision provider
	l.v.SetDefault("providers.vision.base_url", "https://api.clarifai.com")
	l.v.SetDefault("providers.vision.user_id", "clarifai")
	l.v.SetDefault("providers.vision.app_id", "main")
	l.v.SetDefault("providers.vision.sample_interval_ms", 1000)
	l.v.SetDefault("providers.vision.timeout", "5m")
	l.v.SetDefault("providers.vision.models", map[string]string{
		"concept":               "general-image-recognition",
		"face_sentiment":        "face-sentiment-recognition",
		"face_age":              "age-demographics-recognition",
		"face_gender":           "gender-demographics-recognition",
		"face_multiculturality": "ethnicity-demographics-recognition",
		"object":                "general-image-detection",
		"celebrity":             "celebrity-face-recognition",
		"color":                 "color-recognition",
	})
	l.v.SetDefault("providers.vision.thresholds", map[string]float64{
		"concept":               0.7,
		"face_sentiment":        0.3,
		"face_age":              0.3,
		"face_gender":           0.3,
		"face_multiculturality": 0.3,
		"object":                0.7,
		"celebrity":             0.8,
	})

	// Retry defaults
	l.v.SetDefault("retry.max_attempts", 3)
	l.v.SetDefault("retry.initial_delay", "2s")
	l.v.SetDefault("retry.max_delay", "30s")
	l.v.SetDefault("retry.max_jitter", "500ms")
	l.v.SetDefault("retry.multiplier", 2.0)

	// Rate limit defaults
	l.v.SetDefault("rate_limits.narrative.per_minute", 60)
	l.v.SetDefault("rate_limits.narrative.burst", 5)
	l.v.SetDefault("rate_limits.vision.per_minute", 120)
	l.v.SetDefault("rate_limits.vision.burst", 10)
	l.v.SetDefault("rate_limits.synthesis.per_minute", 60)
	l.v.SetDefault("rate_limits.synthesis.burst", 5)

	// Reconciliation defaults (70/30 blend, 1.5 point perturbation)
	l.v.SetDefault("reconcile.weight", 0.7)
	l.v.SetDefault("reconcile.max_perturbation", 1.5)
	l.v.SetDefault("reconcile.seed", 0)
	l.v.SetDefault("reconcile.contradiction_threshold", 15.0)

	// Synthesis defaults
	l.v.SetDefault("synthesis.model", "gemini-1.5-pro")
	l.v.SetDefault("synthesis.max_tokens", 8192)
	l.v.SetDefault("synthesis.temperature", 0.2)
	l.v.SetDefault("synthesis.validator_temperature", 0.1)
	l.v.SetDefault("synthesis.timeout", "3m")
	l.v.SetDefault("synthesis.validation_enabled", true)

	// Pipeline defaults
	l.v.SetDefault("pipeline.failure_policy", "best_effort")
	l.v.SetDefault("pipeline.work_dir", ".reelsight/work")
	l.v.SetDefault("pipeline.max_concurrent", 4)

	// Store defaults
	l.v.SetDefault("store.backend", "sqlite")
	l.v.SetDefault("store.path", ".reelsight/results.db")
	l.v.SetDefault("store.database", "reelsight")
	l.v.SetDefault("store.collection", "analyses")

	// Cache defaults
	l.v.SetDefault("cache.enabled", false)
	l.v.SetDefault("cache.addr", "localhost:6379")
	l.v.SetDefault("cache.db", 0)
	l.v.SetDefault("cache.ttl", "24h")

	// Staging defaults
	l.v.SetDefault("staging.backend", "none")
	l.v.SetDefault("staging.region", "us-east-1")
	l.v.SetDefault("staging.prefix", "videos/")

	// Event defaults
	l.v.SetDefault("events.kafka.enabled", false)
	l.v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	l.v.SetDefault("events.kafka.topic", "reelsight.jobs")
	l.v.SetDefault("events.kafka.client_id", "reelsight")

	// Metrics defaults
	l.v.SetDefault("metrics.enabled", true)
	l.v.SetDefault("metrics.namespace", "reelsight")
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}
