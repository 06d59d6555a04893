// Package cmd provides the CLI commands for the egress proxy.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sentinelgate/egressproxy/internal/adapter/inbound/proxy"
	stdoutaudit "github.com/sentinelgate/egressproxy/internal/adapter/outbound/audit"
	"github.com/sentinelgate/egressproxy/internal/adapter/outbound/blobstore"
	"github.com/sentinelgate/egressproxy/internal/adapter/outbound/cel"
	"github.com/sentinelgate/egressproxy/internal/config"
	"github.com/sentinelgate/egressproxy/internal/domain/allowlist"
	"github.com/sentinelgate/egressproxy/internal/domain/credential"
	"github.com/sentinelgate/egressproxy/internal/domain/ratelimit"
	"github.com/sentinelgate/egressproxy/internal/domain/sanitize"
	"github.com/sentinelgate/egressproxy/internal/service"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the egress proxy",
	Long: `Start the egress proxy listener.

The proxy serves two protocols on one port: CONNECT tunnels and plain-HTTP
forwarding for outbound agent traffic, and a small set of local endpoints
(/health, /post, /vote, /memory, /memory/latest).

Examples:
  # Start with config file settings
  egressproxy start

  # Start with a specific config file
  egressproxy --config /path/to/config.yaml start

  # Override the listening port
  egressproxy start --port 8080`,
	RunE: runStart,
}

var devMode bool
var portOverride int

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "enable verbose logging")
	startCmd.Flags().IntVar(&portOverride, "port", 0, "override the configured listening port")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	if portOverride != 0 {
		cfg.Server.Port = portOverride
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("egress proxy stopped")
	return nil
}

// run wires C1-C6 into the proxy core and blocks until the context is
// cancelled (the graceful-shutdown signal) or the listener fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startTime := time.Now().UTC()

	allowCfg, err := allowlist.Load(cfg.Allowlist.Path)
	if err != nil {
		return fmt.Errorf("failed to load allowlist: %w", err)
	}

	guard, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to build CEL guard evaluator: %w", err)
	}
	holder := allowlist.NewHolder(allowCfg, guard)

	cred, err := credential.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to resolve upstream credential: %w", err)
	}

	upstreamTimeout := parseDurationOr(cfg.Upstream.Timeout, 10*time.Second)
	moltbook := service.NewMoltbookClient(cfg.Upstream.BaseURL, upstreamTimeout, cred)

	storeCtx, storeCancel := context.WithTimeout(ctx, 15*time.Second)
	blobStore, err := blobstore.New(storeCtx, blobstore.Config{
		Bucket:   cfg.Store.Bucket,
		Region:   cfg.Store.Region,
		Endpoint: cfg.Store.Endpoint,
	})
	storeCancel()
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	auditSink := stdoutaudit.New(os.Stdout)

	limiter := ratelimit.New()
	defer limiter.Stop()

	reg := prometheus.NewRegistry()
	metrics := proxy.NewMetrics(reg)

	deps := proxy.Deps{
		Allowlist:       holder,
		Sanitizer:       sanitize.New(),
		RateLimiter:     limiter,
		Audit:           auditSink,
		Store:           blobStore,
		Upstream:        moltbook,
		Metrics:         metrics,
		StartTime:       startTime,
		UpstreamTimeout: upstreamTimeout,
	}
	server := proxy.NewServer(deps)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.Port, err)
	}

	metricsServer := &http.Server{
		Addr:    "127.0.0.1:9090",
		Handler: promMux(reg),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	logger.Info("egress proxy listening", "port", cfg.Server.Port, "allowlist_domains", allowCfg.DomainCount())

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- server.Serve(ln) }()

	reloadCh := make(chan os.Signal, 1)
	if sigs := reloadSignals(); len(sigs) > 0 {
		signal.Notify(reloadCh, sigs...)
		defer signal.Stop(reloadCh)
	}

	for {
		select {
		case <-ctx.Done():
			grace := parseDurationOr(cfg.Server.ShutdownGrace, 10*time.Second)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
			shutdownErr := server.Shutdown(shutdownCtx)
			cancel()
			_ = metricsServer.Close()
			if shutdownErr != nil {
				logger.Error("shutdown grace period exceeded", "error", shutdownErr)
				return shutdownErr
			}
			return nil

		case sig := <-reloadCh:
			if err := holder.Reload(cfg.Allowlist.Path); err != nil {
				logger.Error("allowlist reload failed, keeping previous config", "error", err)
			} else {
				logger.Info("allowlist reloaded", "signal", sig.String())
			}

		case err := <-serveErrCh:
			if err != nil {
				logger.Error("listener stopped unexpectedly", "error", err)
				return err
			}
			return nil
		}
	}
}

func promMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// parseDurationOr parses s, falling back to def on empty or malformed input.
func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// parseLogLevel converts a string log level to slog.Level. Returns
// slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pidFilePath returns the standard location for the egress proxy's PID
// file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".egressproxy", "proxy.pid")
	}
	return filepath.Join(os.TempDir(), "egressproxy.pid")
}

// writePIDFile writes the current process PID to path, creating parent
// directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
