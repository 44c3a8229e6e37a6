package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/kafka"
	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/providers"
	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/source"
	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/staging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/adapters/store"
	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/events"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/metrics"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/pipeline"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/progress"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/reconcile"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/synthesis"
)

func newLogger(out io.Writer) *logging.Logger {
	if out == nil {
		out = os.Stderr
	}
	return logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: out,
	})
}

// loadConfig reads and validates the configuration through the shared viper
// instance so CLI flag bindings apply.
func loadConfig() (*config.Loader, *config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper()).WithDotEnv(".env")
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

// runtime is the in-process analysis stack shared by serve and analyze --local.
type runtime struct {
	cfg          *config.Config
	logger       *logging.Logger
	metrics      *metrics.Collector
	store        core.ResultStore
	bus          *events.EventBus
	tracker      *progress.Tracker
	orchestrator *pipeline.Orchestrator

	closers []func() error
}

// buildRuntime wires every collaborator from cfg. The caller owns Close.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		rt.metrics = metrics.NewCollector(cfg.Metrics.Namespace)
	}

	rs, err := store.New(ctx, cfg, logger, rt.metrics)
	if err != nil {
		return nil, fmt.Errorf("opening result store: %w", err)
	}
	rt.store = rs
	rt.closers = append(rt.closers, rs.Close)

	rt.bus = events.New(100)
	rt.closers = append(rt.closers, func() error { rt.bus.Close(); return nil })

	publishers := events.Fanout{events.NewPublisher(rt.bus)}
	if cfg.Events.Kafka.Enabled {
		kp, err := kafka.NewPublisher(cfg.Events.Kafka, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to kafka: %w", err)
		}
		rt.closers = append(rt.closers, kp.Close)
		publishers = append(publishers, kp)
		logger.Info("publishing job events to kafka", "topic", cfg.Events.Kafka.Topic)
	}

	rt.tracker = progress.NewTracker(
		progress.WithStore(rs),
		progress.WithPublisher(publishers),
		progress.WithMetrics(rt.metrics),
		progress.WithLogger(logger),
	)

	stager, err := staging.New(ctx, cfg.Staging)
	if err != nil {
		return nil, fmt.Errorf("configuring staging: %w", err)
	}

	chat, err := providers.NewChatClient(providers.ChatConfigFromNarrative(cfg.Providers.Narrative))
	if err != nil {
		return nil, err
	}
	vision, err := providers.NewVisionClient(providers.VisionConfigFrom(cfg.Providers.Vision))
	if err != nil {
		return nil, err
	}

	limits := service.NewRateLimiterRegistryFromConfig(cfg.RateLimits)
	adapterOpts := func(name string) []providers.AdapterOption {
		return []providers.AdapterOption{
			providers.WithRetry(service.RetryPolicyFromConfig(cfg.Retry)),
			providers.WithLimiter(limits.Get(name)),
			providers.WithMetrics(rt.metrics),
			providers.WithLogger(logger),
		}
	}

	prompts, err := service.NewPromptRenderer()
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}
	synthOpts := synthesis.OptionsFromConfig(cfg.Synthesis)
	genOpts := []synthesis.Option{
		synthesis.WithRateLimiter(limits.Get("synthesis")),
		synthesis.WithRetryPolicy(service.RetryPolicyFromConfig(cfg.Retry)),
		synthesis.WithLogger(logger),
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	rt.orchestrator, err = pipeline.New(pipeline.Deps{
		Fetcher:     source.NewFetcher(cfg.Pipeline.WorkDir, logger),
		Stager:      stager,
		Narrative:   providers.NarrativeAdapter(chat, adapterOpts("narrative")...),
		Vision:      providers.VisionAdapter(vision, adapterOpts("vision")...),
		Prompts:     prompts,
		Reconciler:  reconcile.New(reconcile.OptionsFromConfig(cfg.Reconcile)),
		Synthesizer: synthesis.NewSynthesizer(chat, prompts, synthOpts, genOpts...),
		Validator:   synthesis.NewValidator(chat, prompts, synthOpts, genOpts...),
		Tracker:     rt.tracker,
		Store:       rs,
		Events:      publishers,
		Metrics:     rt.metrics,
		Logger:      logger,
	}, opts)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("closing resource", "error", err)
		}
	}
	rt.closers = nil
}
