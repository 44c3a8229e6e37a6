package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/reelsight/internal/api"
	"github.com/hugo-lorenzo-mato/reelsight/internal/config"
	"github.com/hugo-lorenzo-mato/reelsight/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/service/progress"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis API server",
	Long: `Start the reelsight API server.

The server accepts analysis jobs over REST, runs them in the background and
streams progress as server-sent events.

Examples:
  # Start with defaults (localhost:8080)
  reelsight serve

  # Listen on all interfaces
  reelsight serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"Host address to bind to (default: server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"Port to listen on (default: server.port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	loader, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	loader.Watch(func(next *config.Config) {
		if next.Log.Level != cfg.Log.Level {
			logger.SetLevel(next.Log.Level)
			logger.Info("log level changed", "level", next.Log.Level)
			cfg.Log.Level = next.Log.Level
		}
	}, func(err error) {
		logger.Warn("ignoring invalid config change", "error", err)
	})

	scheduler, err := scheduleEviction(cfg.Server, rt.tracker, logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	health := diagnostics.NewHealthChecker(
		diagnostics.NewHostSampler(cfg.Pipeline.WorkDir),
		diagnostics.DefaultThresholds(),
		appVersion,
	)

	server := api.NewServer(rt.orchestrator, rt.store,
		api.WithLogger(logger),
		api.WithTracker(rt.tracker),
		api.WithEventBus(rt.bus),
		api.WithHealthChecker(health),
		api.WithMetrics(rt.metrics),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
		api.WithRequestTimeout(config.Duration(cfg.Server.RequestTimeout, 60*time.Second)),
	)

	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	shutdownTimeout := config.Duration(cfg.Server.ShutdownTimeout, 30*time.Second)

	if err := server.ListenAndServe(ctx, addr, shutdownTimeout); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("waiting for running analyses", "active", len(rt.tracker.Active()))
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.orchestrator.Wait(waitCtx); err != nil {
		logger.Warn("analyses still running at shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

// scheduleEviction drops finished jobs from memory on the configured cron
// schedule. Results stay in the store. It returns nil when disabled.
func scheduleEviction(cfg config.ServerConfig, tracker *progress.Tracker, logger *logging.Logger) (*cron.Cron, error) {
	if cfg.EvictSchedule == "" {
		return nil, nil
	}
	after := config.Duration(cfg.EvictAfter, time.Hour)
	c := cron.New()
	if _, err := c.AddFunc(cfg.EvictSchedule, func() {
		if n := tracker.Evict(after); n > 0 {
			logger.Debug("evicted finished jobs", "count", n, "tracked", tracker.Len())
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid server.evict_schedule %q: %w", cfg.EvictSchedule, err)
	}
	return c, nil
}
