package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fortemi/matric-mcp/internal/adapter/inbound/http"
	"github.com/fortemi/matric-mcp/internal/adapter/inbound/stdio"
	"github.com/fortemi/matric-mcp/internal/adapter/outbound/backend"
	"github.com/fortemi/matric-mcp/internal/adapter/outbound/memory"
	"github.com/fortemi/matric-mcp/internal/adapter/outbound/oauth"
	"github.com/fortemi/matric-mcp/internal/config"
	"github.com/fortemi/matric-mcp/internal/domain/session"
	"github.com/fortemi/matric-mcp/internal/domain/tool"
	"github.com/fortemi/matric-mcp/internal/service"
	"github.com/fortemi/matric-mcp/internal/tools"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long: `Start the Matric MCP gateway.

The transport comes from the config (or --transport):

1. stdio: serve one local client over stdin/stdout. The backend API key
   from backend.api_key authenticates every call to the knowledge API.

2. http: serve remote clients on server.http_addr. Clients authenticate
   with OAuth bearer tokens, verified against oauth.introspection_url.

Examples:
  # Start on stdio (default)
  matric-mcp start

  # Start the HTTP transport
  matric-mcp start --transport http

  # Start with a specific config file
  matric-mcp --config /path/to/config.yaml start`,
	RunE: runStart,
}

var (
	devMode       bool
	transportFlag string
)

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, relaxed validation)")
	startCmd.Flags().StringVar(&transportFlag, "transport", "", "Transport override: stdio or http")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load without validation so CLI flags can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	if transportFlag != "" {
		cfg.Transport = transportFlag
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a
	// hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	// Logger goes to stderr; stdout is the protocol stream in stdio mode.
	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// A PID file only makes sense for the long-lived HTTP server; a stdio
	// gateway lives and dies with its client.
	if cfg.Transport == config.TransportHTTP {
		pidPath := pidFilePath()
		if err := writePIDFile(pidPath); err != nil {
			logger.Warn("failed to write PID file", "path", pidPath, "error", err)
		} else {
			defer os.Remove(pidPath)
		}
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("matric-mcp stopped")
	return nil
}

// run wires the gateway together and serves the configured transport.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.DevMode {
		logger.Warn("development mode enabled; localhost issuer allowed, log level forced to debug")
	}

	store := memory.NewSessionStoreWithConfig(cfg.SessionTimeoutDuration(), cfg.SweepIntervalDuration(), logger)
	sessions := session.NewService(store, session.Config{IdleTimeout: cfg.SessionTimeoutDuration()})

	registry, err := tool.NewRegistry(tools.Catalog())
	if err != nil {
		return fmt.Errorf("failed to build tool registry: %w", err)
	}
	logger.Info("tool registry built", "tools", registry.Len())

	base := backend.NewClient(cfg.Backend.URL,
		backend.WithTimeout(cfg.BackendTimeoutDuration()),
		backend.WithLogger(logger),
		backend.WithAPIKey(cfg.Backend.APIKey),
	)

	// stdio sessions carry no principal and use the process-wide API key;
	// HTTP sessions forward the principal's own bearer token.
	backendFor := func(sess *session.Session) *backend.Client {
		if sess != nil && sess.Principal != nil {
			return base.WithBearer(sess.Principal.Token)
		}
		return base
	}

	switch cfg.Transport {
	case config.TransportStdio:
		dispatcher := service.NewDispatcher(registry, sessions, backendFor,
			service.WithLogger(logger),
			service.WithServerInfo("matric-mcp", Version),
		)
		transport := stdio.NewStdioTransport(dispatcher, stdio.WithLogger(logger))
		logger.Info("serving stdio transport")
		return transport.Start(ctx)

	case config.TransportHTTP:
		introspector := oauth.NewIntrospector(
			cfg.OAuth.IntrospectionURL,
			cfg.OAuth.ClientID,
			cfg.OAuth.ClientSecret,
			oauth.WithNegativeTTL(cfg.NegativeCacheTTLDuration()),
			oauth.WithLogger(logger),
		)

		dispatcher := service.NewDispatcher(registry, sessions, backendFor,
			service.WithLogger(logger),
			service.WithServerInfo("matric-mcp", Version),
			service.WithCredentialRejectedHook(introspector.Invalidate),
		)

		store.StartSweep(ctx)
		defer store.Stop()

		opts := []http.Option{
			http.WithAddr(cfg.Server.HTTPAddr),
			http.WithAllowedOrigins(cfg.Server.AllowedOrigins),
			http.WithLogger(logger),
			http.WithVersion(Version),
			http.WithIntrospectionCacheSize(introspector.CacheSize),
		}
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			opts = append(opts, http.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey))
		}
		if cfg.RateLimit.Enabled {
			opts = append(opts, http.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
		}

		transport := http.NewHTTPTransport(dispatcher, introspector, cfg.OAuth.Issuer, opts...)

		// Reaped sessions lose their streams too.
		store.OnReap = transport.CloseStreams

		return transport.Start(ctx)

	default:
		return fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
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

// pidFilePath returns the standard location for the matric-mcp PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".matric-mcp", "server.pid")
	}
	return filepath.Join(os.TempDir(), "matric-mcp-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
