package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/pushbox/internal/checkpoint"
	"github.com/teemow/pushbox/internal/instrumentation"
	"github.com/teemow/pushbox/internal/logging"
	"github.com/teemow/pushbox/internal/mcp/oauth"
	"github.com/teemow/pushbox/internal/pubsub"
	"github.com/teemow/pushbox/internal/resources"
	"github.com/teemow/pushbox/internal/server"
	"github.com/teemow/pushbox/internal/tools/calendar_tools"
	"github.com/teemow/pushbox/internal/tools/gmail_tools"
	"github.com/teemow/pushbox/internal/tools/watch_tools"
	"github.com/teemow/pushbox/internal/webhook"
)

// PushConfig holds the Pub/Sub push webhook settings.
type PushConfig struct {
	// Project is the Google Cloud project the push subscriptions live in.
	// Used to derive the expected signer service account per tenant.
	Project string

	// Topic is the fully qualified topic mailbox watches publish to
	// (projects/<project>/topics/<topic>).
	Topic string

	// Audience is the expected token audience prefix. Defaults to the
	// server base URL.
	Audience string
}

// CheckpointConfig selects the history checkpoint backend.
type CheckpointConfig struct {
	// Backend is the storage backend type: "memory" or "redis".
	Backend string

	// Redis configuration (used when Backend is "redis").
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// MetricsConfig holds configuration for the metrics server.
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true).
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090").
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode        bool
		transport        string
		httpAddr         string
		yolo             bool
		disableStreaming bool
		baseURL          string
		// Pub/Sub push settings
		pubsubProject  string
		pubsubTopic    string
		pubsubAudience string
		// Checkpoint storage
		checkpointBackend string
		redisAddr         string
		redisPassword     string
		redisDB           int
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server providing Gmail and Calendar
tools for AI assistants, plus the Pub/Sub push webhook that turns mailbox
changes into prompt material.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport with OAuth and the webhook

Safety Mode:
  By default, the server operates in read-only mode, providing only safe
  operations. Use --yolo to enable write operations (sending email,
  creating events, starting watches).

Push Notifications (streamable-http only):
  Gmail publishes mailbox changes to a Pub/Sub topic; the push
  subscription delivers them to ` + server.WebhookPath + `. Deliveries are
  authenticated with the subscription's service account identity token,
  so --pubsub-project (or PUBSUB_PROJECT) must name the project those
  service accounts live in. Seed the history checkpoint for a tenant with
  'pushbox watch start' or the gmail_watch_start tool before pointing a
  subscription at this server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pushConfig := PushConfig{
				Project:  pubsubProject,
				Topic:    pubsubTopic,
				Audience: pubsubAudience,
			}
			checkpointConfig := CheckpointConfig{
				Backend:       checkpointBackend,
				RedisAddr:     redisAddr,
				RedisPassword: redisPassword,
				RedisDB:       redisDB,
			}
			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}

			loadServeEnvVars(cmd, &pushConfig, &checkpointConfig, &metricsConfig)

			return runServe(transport, debugMode, httpAddr, yolo, disableStreaming, baseURL, pushConfig, checkpointConfig, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (email sending, event creation, watch management). Default is read-only mode.")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for HTTP transport (for compatibility with certain clients)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL (HTTP transport only). Required for deployed instances. Can also use MCP_BASE_URL env var. Example: https://mcp.example.com")

	cmd.Flags().StringVar(&pubsubProject, "pubsub-project", "", "Google Cloud project of the push subscriptions. Can also use PUBSUB_PROJECT env var.")
	cmd.Flags().StringVar(&pubsubTopic, "pubsub-topic", "", "Pub/Sub topic mailbox watches publish to (projects/<project>/topics/<topic>). Can also use PUBSUB_TOPIC env var.")
	cmd.Flags().StringVar(&pubsubAudience, "pubsub-audience", "", "Expected push token audience prefix. Defaults to the base URL. Can also use PUBSUB_AUDIENCE env var.")

	cmd.Flags().StringVar(&checkpointBackend, "checkpoint-backend", "memory", "Checkpoint storage backend: memory or redis. Can also use CHECKPOINT_BACKEND env var.")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "localhost:6379", "Redis server address. Can also use REDIS_ADDR env var.")
	cmd.Flags().StringVar(&redisPassword, "redis-password", "", "Redis authentication password. Can also use REDIS_PASSWORD env var.")
	cmd.Flags().IntVar(&redisDB, "redis-db", 0, "Redis database number. Can also use REDIS_DB env var.")

	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars fills serve configuration from environment variables.
// Environment variables only apply when the flag was not explicitly set.
func loadServeEnvVars(cmd *cobra.Command, push *PushConfig, cp *CheckpointConfig, metrics *MetricsConfig) {
	if !cmd.Flags().Changed("pubsub-project") {
		if project := os.Getenv("PUBSUB_PROJECT"); project != "" {
			push.Project = project
		}
	}
	if !cmd.Flags().Changed("pubsub-topic") {
		if topic := os.Getenv("PUBSUB_TOPIC"); topic != "" {
			push.Topic = topic
		}
	}
	if !cmd.Flags().Changed("pubsub-audience") {
		if audience := os.Getenv("PUBSUB_AUDIENCE"); audience != "" {
			push.Audience = audience
		}
	}

	if !cmd.Flags().Changed("checkpoint-backend") {
		if backend := os.Getenv("CHECKPOINT_BACKEND"); backend != "" {
			cp.Backend = backend
		}
	}
	if !cmd.Flags().Changed("redis-addr") {
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			cp.RedisAddr = addr
		}
	}
	if !cmd.Flags().Changed("redis-password") {
		if password := os.Getenv("REDIS_PASSWORD"); password != "" {
			cp.RedisPassword = password
		}
	}
	if !cmd.Flags().Changed("redis-db") {
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				cp.RedisDB = db
			}
		}
	}

	if !cmd.Flags().Changed("metrics-enabled") {
		if os.Getenv("METRICS_ENABLED") == "false" {
			metrics.Enabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metrics.Addr = addr
		}
	}
}

func runServe(transport string, debugMode bool, httpAddr string, yolo bool, disableStreaming bool, baseURL string, pushConfig PushConfig, checkpointConfig CheckpointConfig, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr so the stdio transport keeps stdout clean.
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(250 * time.Millisecond):
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		}
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
	}()

	// Create checkpoint store
	checkpoints, err := buildCheckpointStore(checkpointConfig.Backend, checkpointConfig.RedisAddr, checkpointConfig.RedisPassword, checkpointConfig.RedisDB)
	if err != nil {
		return err
	}

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("pushbox", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)

	// readOnly is the inverse of yolo
	readOnly := !yolo

	if transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	// Start the appropriate server based on transport type
	switch transport {
	case "stdio":
		return runStdioServer(shutdownCtx, mcpSrv, provider, checkpoints, pushConfig, readOnly, logger)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, provider, checkpoints, httpAddr, disableStreaming, baseURL, pushConfig, readOnly, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}
}

// buildCheckpointStore creates the history checkpoint backend.
func buildCheckpointStore(backend, redisAddr, redisPassword string, redisDB int) (checkpoint.Store, error) {
	switch backend {
	case "", "memory":
		return checkpoint.NewMemoryStore(), nil
	case "redis":
		return checkpoint.NewRedisStore(checkpoint.RedisConfig{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend: %s (supported: memory, redis)", backend)
	}
}

func newServerContext(ctx context.Context, provider *instrumentation.Provider, checkpoints checkpoint.Store, pushConfig PushConfig, readOnly bool, logger *slog.Logger, tokenProvider *oauth.TokenProvider) *server.ServerContext {
	config := server.ContextConfig{
		Checkpoints: checkpoints,
		PubSubTopic: pushConfig.Topic,
		ReadOnly:    readOnly,
		Logger:      logger,
	}
	if tokenProvider != nil {
		config.TokenProvider = tokenProvider
	}
	if provider.Enabled() {
		config.Metrics = provider.Metrics()
		config.Audit = instrumentation.NewAuditLoggerWithConfig(logger, instrumentation.AuditLoggingConfig{
			Enabled:    true,
			IncludePII: os.Getenv("AUDIT_LOGGING_INCLUDE_PII") == "true",
		})
	}
	return server.NewServerContext(ctx, config)
}

// registerAll registers all MCP tools and resources.
func registerAll(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	type registration struct {
		name     string
		register func() error
	}

	registrations := []registration{
		{
			name: "Gmail",
			register: func() error {
				return gmail_tools.RegisterGmailTools(mcpSrv, sc)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, sc)
			},
		},
		{
			name: "Watch",
			register: func() error {
				return watch_tools.RegisterWatchTools(mcpSrv, sc)
			},
		},
		{
			name: "Resources",
			register: func() error {
				return resources.RegisterResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, provider *instrumentation.Provider, checkpoints checkpoint.Store, pushConfig PushConfig, readOnly bool, logger *slog.Logger) error {
	serverContext := newServerContext(ctx, provider, checkpoints, pushConfig, readOnly, logger, nil)
	defer serverContext.Shutdown()

	if err := registerAll(mcpSrv, serverContext); err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, provider *instrumentation.Provider, checkpoints checkpoint.Store, addr string, disableStreaming bool, baseURL string, pushConfig PushConfig, readOnly bool, logger *slog.Logger) error {
	baseURL = resolveBaseURL(baseURL, addr)

	// Create OAuth handler for the MCP endpoint
	oauthHandler, err := oauth.NewHandler(oauth.Config{
		Resource: baseURL,
		Logger:   logging.NewSlogAdapter(logger),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	// Google API clients use tokens captured from OAuth authentication
	tokenProvider := oauth.NewTokenProvider(oauthHandler.Store())

	serverContext := newServerContext(ctx, provider, checkpoints, pushConfig, readOnly, logger, tokenProvider)
	defer serverContext.Shutdown()

	if err := registerAll(mcpSrv, serverContext); err != nil {
		return err
	}

	// Create the push webhook pipeline. Deliveries authenticate with the
	// subscription's service account identity token, verified against
	// Google's JWKS.
	project := pushConfig.Project
	if project == "" {
		project = projectFromTopic(pushConfig.Topic)
	}
	if project == "" {
		return fmt.Errorf("push project is required for HTTP transport: set --pubsub-project or a fully qualified --pubsub-topic")
	}

	keySource, err := pubsub.NewGoogleKeySource(ctx)
	if err != nil {
		return fmt.Errorf("failed to create push key source: %w", err)
	}

	audience := pushConfig.Audience
	if audience == "" {
		audience = baseURL
	}

	verifier := pubsub.NewVerifier(keySource, audience, logger)

	var observer webhook.Observer
	if provider.Enabled() {
		observer = provider.Metrics()
	}
	pipeline := webhook.NewPipeline(verifier, webhook.GmailEnumerator{}, checkpoints, project, logger, observer)
	webhookHandler := webhook.NewHandler(pipeline, logger)

	healthChecker := server.NewHealthChecker(serverContext)

	oauthServer, err := server.NewOAuthHTTPServer(mcpSrv, oauthHandler, webhookHandler, healthChecker, server.HTTPServerConfig{
		BaseURL:          baseURL,
		DisableStreaming: disableStreaming,
	})
	if err != nil {
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}
	if provider.Enabled() {
		oauthServer.SetMetrics(provider.Metrics())
	}

	fmt.Printf("Streamable HTTP server with Google OAuth authentication starting on %s\n", addr)
	fmt.Printf("  MCP endpoint: /mcp\n")
	fmt.Printf("  Push webhook: %s\n", server.WebhookPath)
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	fmt.Printf("  OAuth metadata: /.well-known/oauth-protected-resource\n")

	healthChecker.SetReady(true)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthServer.Start(addr); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := oauthServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}

// resolveBaseURL determines the externally visible base URL. Falls back to
// auto-detection for local development when neither the flag nor
// MCP_BASE_URL is set.
func resolveBaseURL(baseURL, addr string) string {
	if baseURL == "" {
		baseURL = os.Getenv("MCP_BASE_URL")
	}
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s", addr)
		if addr != "" && addr[0] == ':' {
			baseURL = fmt.Sprintf("http://localhost%s", addr)
		}
		log.Printf("No base URL configured, using auto-detected: %s", baseURL)
		log.Printf("For deployed instances, set --base-url flag or MCP_BASE_URL env var")
	} else {
		log.Printf("Using configured base URL: %s", baseURL)
	}
	return baseURL
}

// projectFromTopic extracts the project from a fully qualified topic name
// (projects/<project>/topics/<topic>).
func projectFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 4 && parts[0] == "projects" && parts[2] == "topics" {
		return parts[1]
	}
	return ""
}
