package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Retry      RetryConfig      `mapstructure:"retry"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Synthesis  SynthesisConfig  `mapstructure:"synthesis"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Store      StoreConfig      `mapstructure:"store"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Staging    StagingConfig    `mapstructure:"staging"`
	Events     EventsConfig     `mapstructure:"events"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	RequestTimeout  string   `mapstructure:"request_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
	// EvictSchedule is a cron spec for sweeping finished jobs from memory.
	EvictSchedule string `mapstructure:"evict_schedule"`
	EvictAfter    string `mapstructure:"evict_after"`
}

// ProvidersConfig configures both analysis providers.
type ProvidersConfig struct {
	Narrative NarrativeConfig `mapstructure:"narrative"`
	Vision    VisionConfig    `mapstructure:"vision"`
}

// NarrativeConfig configures the generative narrative provider. It speaks
// the OpenAI chat completions protocol.
type NarrativeConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     string  `mapstructure:"timeout"`
}

// VisionConfig configures the vision analytics provider.
type VisionConfig struct {
	BaseURL          string             `mapstructure:"base_url"`
	APIKey           string             `mapstructure:"api_key"`
	UserID           string             `mapstructure:"user_id"`
	AppID            string             `mapstructure:"app_id"`
	SampleIntervalMs int                `mapstructure:"sample_interval_ms"`
	Timeout          string             `mapstructure:"timeout"`
	Models           map[string]string  `mapstructure:"models"`
	Thresholds       map[string]float64 `mapstructure:"thresholds"`
}

// RetryConfig configures the provider retry envelope.
type RetryConfig struct {
	MaxAttempts  int     `mapstructure:"max_attempts"`
	InitialDelay string  `mapstructure:"initial_delay"`
	MaxDelay     string  `mapstructure:"max_delay"`
	MaxJitter    string  `mapstructure:"max_jitter"`
	Multiplier   float64 `mapstructure:"multiplier"`
}

// RateLimitsConfig caps calls per provider.
type RateLimitsConfig struct {
	Narrative RateLimitConfig `mapstructure:"narrative"`
	Vision    RateLimitConfig `mapstructure:"vision"`
	Synthesis RateLimitConfig `mapstructure:"synthesis"`
}

// RateLimitConfig is a token bucket.
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// ReconcileConfig configures distribution and score reconciliation.
type ReconcileConfig struct {
	// Weight favors the narrative source in blends.
	Weight                 float64 `mapstructure:"weight"`
	MaxPerturbation        float64 `mapstructure:"max_perturbation"`
	Seed                   int64   `mapstructure:"seed"`
	ContradictionThreshold float64 `mapstructure:"contradiction_threshold"`
}

// SynthesisConfig configures the synthesis and validation passes.
type SynthesisConfig struct {
	Model                string  `mapstructure:"model"`
	MaxTokens            int     `mapstructure:"max_tokens"`
	Temperature          float64 `mapstructure:"temperature"`
	ValidatorTemperature float64 `mapstructure:"validator_temperature"`
	Timeout              string  `mapstructure:"timeout"`
	ValidationEnabled    bool    `mapstructure:"validation_enabled"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	FailurePolicy string `mapstructure:"failure_policy"`
	WorkDir       string `mapstructure:"work_dir"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// StoreConfig configures the durable result store.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	DSN        string `mapstructure:"dsn"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// CacheConfig configures the optional redis read-through cache.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      string `mapstructure:"ttl"`
}

// StagingConfig configures blob staging for the vision provider.
type StagingConfig struct {
	Backend      string `mapstructure:"backend"`
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Profile      string `mapstructure:"profile"`
	Endpoint     string `mapstructure:"endpoint"`
	Prefix       string `mapstructure:"prefix"`
	PublicURL    string `mapstructure:"public_url"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// EventsConfig configures broker publication of job events.
type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the Kafka producer.
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Duration parses a duration string, falling back to def on error or empty.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
