package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateProviders(&cfg.Providers)
	v.validateRetry(&cfg.Retry)
	v.validateReconcile(&cfg.Reconcile)
	v.validateSynthesis(&cfg.Synthesis)
	v.validatePipeline(&cfg.Pipeline)
	v.validateStore(&cfg.Store)
	v.validateCache(&cfg.Cache)
	v.validateStaging(&cfg.Staging)
	v.validateEvents(&cfg.Events)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
	v.validateDuration("server.request_timeout", cfg.RequestTimeout)
	v.validateDuration("server.shutdown_timeout", cfg.ShutdownTimeout)
	v.validateDuration("server.evict_after", cfg.EvictAfter)
}

func (v *Validator) validateProviders(cfg *ProvidersConfig) {
	if cfg.Narrative.Model == "" {
		v.addError("providers.narrative.model", cfg.Narrative.Model, "required")
	}
	if cfg.Narrative.Temperature < 0 || cfg.Narrative.Temperature > 2 {
		v.addError("providers.narrative.temperature", cfg.Narrative.Temperature, "must be between 0 and 2")
	}
	v.validateDuration("providers.narrative.timeout", cfg.Narrative.Timeout)

	if cfg.Vision.SampleIntervalMs <= 0 {
		v.addError("providers.vision.sample_interval_ms", cfg.Vision.SampleIntervalMs, "must be positive")
	}
	v.validateDuration("providers.vision.timeout", cfg.Vision.Timeout)
	for name := range cfg.Vision.Models {
		if !isVisionModel(name) {
			v.addError("providers.vision.models."+name, name, "unknown vision model")
		}
	}
	for name, threshold := range cfg.Vision.Thresholds {
		if !isVisionModel(name) {
			v.addError("providers.vision.thresholds."+name, name, "unknown vision model")
		}
		if threshold < 0 || threshold > 1 {
			v.addError("providers.vision.thresholds."+name, threshold, "must be between 0 and 1")
		}
	}
}

func (v *Validator) validateRetry(cfg *RetryConfig) {
	if cfg.MaxAttempts < 1 {
		v.addError("retry.max_attempts", cfg.MaxAttempts, "must be at least 1")
	}
	if cfg.Multiplier < 1 {
		v.addError("retry.multiplier", cfg.Multiplier, "must be at least 1")
	}
	v.validateDuration("retry.initial_delay", cfg.InitialDelay)
	v.validateDuration("retry.max_delay", cfg.MaxDelay)
	v.validateDuration("retry.max_jitter", cfg.MaxJitter)
}

func (v *Validator) validateReconcile(cfg *ReconcileConfig) {
	if cfg.Weight < 0 || cfg.Weight > 1 {
		v.addError("reconcile.weight", cfg.Weight, "must be between 0 and 1")
	}
	if cfg.MaxPerturbation < 0 || cfg.MaxPerturbation > 10 {
		v.addError("reconcile.max_perturbation", cfg.MaxPerturbation, "must be between 0 and 10")
	}
	if cfg.ContradictionThreshold <= 0 || cfg.ContradictionThreshold > 100 {
		v.addError("reconcile.contradiction_threshold", cfg.ContradictionThreshold, "must be in (0, 100]")
	}
}

func (v *Validator) validateSynthesis(cfg *SynthesisConfig) {
	if cfg.Model == "" {
		v.addError("synthesis.model", cfg.Model, "required")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		v.addError("synthesis.temperature", cfg.Temperature, "must be between 0 and 2")
	}
	if cfg.ValidatorTemperature < 0 || cfg.ValidatorTemperature > 2 {
		v.addError("synthesis.validator_temperature", cfg.ValidatorTemperature, "must be between 0 and 2")
	}
	v.validateDuration("synthesis.timeout", cfg.Timeout)
}

func (v *Validator) validatePipeline(cfg *PipelineConfig) {
	if cfg.FailurePolicy != "best_effort" && cfg.FailurePolicy != "strict" {
		v.addError("pipeline.failure_policy", cfg.FailurePolicy, "must be one of: best_effort, strict")
	}
	if cfg.MaxConcurrent < 1 {
		v.addError("pipeline.max_concurrent", cfg.MaxConcurrent, "must be at least 1")
	}
	if cfg.WorkDir != "" && !isValidPath(cfg.WorkDir) {
		v.addError("pipeline.work_dir", cfg.WorkDir, "invalid directory path")
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	switch cfg.Backend {
	case "sqlite", "json":
		if cfg.Path == "" {
			v.addError("store.path", cfg.Path, "required for "+cfg.Backend+" backend")
		} else if !isValidPath(cfg.Path) {
			v.addError("store.path", cfg.Path, "invalid file path")
		}
	case "mongo", "postgres":
		if cfg.DSN == "" {
			v.addError("store.dsn", "", "required for "+cfg.Backend+" backend")
		}
		if cfg.Backend == "mongo" && (cfg.Database == "" || cfg.Collection == "") {
			v.addError("store.database", cfg.Database, "database and collection required for mongo backend")
		}
	default:
		v.addError("store.backend", cfg.Backend, "must be one of: sqlite, json, mongo, postgres")
	}
}

func (v *Validator) validateCache(cfg *CacheConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Addr == "" {
		v.addError("cache.addr", cfg.Addr, "required when cache is enabled")
	}
	v.validateDuration("cache.ttl", cfg.TTL)
}

func (v *Validator) validateStaging(cfg *StagingConfig) {
	switch cfg.Backend {
	case "none", "":
	case "s3":
		if cfg.Bucket == "" {
			v.addError("staging.bucket", cfg.Bucket, "required for s3 staging")
		}
	default:
		v.addError("staging.backend", cfg.Backend, "must be one of: none, s3")
	}
}

func (v *Validator) validateEvents(cfg *EventsConfig) {
	if !cfg.Kafka.Enabled {
		return
	}
	if len(cfg.Kafka.Brokers) == 0 {
		v.addError("events.kafka.brokers", cfg.Kafka.Brokers, "at least one broker required")
	}
	if cfg.Kafka.Topic == "" {
		v.addError("events.kafka.topic", cfg.Kafka.Topic, "required")
	}
}

func (v *Validator) validateDuration(field, value string) {
	if value == "" {
		return
	}
	if _, err := time.ParseDuration(value); err != nil {
		v.addError(field, value, "invalid duration")
	}
}

func isVisionModel(name string) bool {
	for _, m := range core.AllVisionModels() {
		if string(m) == name {
			return true
		}
	}
	return false
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
