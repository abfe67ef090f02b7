package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/pushbox/internal/calendar"
	"github.com/teemow/pushbox/internal/checkpoint"
	"github.com/teemow/pushbox/internal/gmail"
	"github.com/teemow/pushbox/internal/google"
	"github.com/teemow/pushbox/internal/instrumentation"
)

// ContextConfig holds the dependencies for a ServerContext.
type ContextConfig struct {
	// TokenProvider supplies Google tokens per account. Defaults to the
	// file-based provider used by the stdio transport.
	TokenProvider google.TokenProvider

	// Checkpoints stores Gmail history cursors per tenant server.
	Checkpoints checkpoint.Store

	// PubSubTopic is the fully qualified topic watches publish to
	// (projects/<project>/topics/<topic>).
	PubSubTopic string

	// ReadOnly disables tools that mutate Gmail or Calendar state.
	ReadOnly bool

	// Metrics records tool and Google API metrics. Optional.
	Metrics *instrumentation.Metrics

	// Audit receives tool invocation audit records. Optional.
	Audit *instrumentation.AuditLogger

	// Logger for structured logging. Defaults to slog.Default.
	Logger *slog.Logger
}

// ServerContext holds shared state for the MCP server: per-account Google
// clients, the checkpoint store, and instrumentation.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	tokenProvider google.TokenProvider
	checkpoints   checkpoint.Store
	pubsubTopic   string
	readOnly      bool
	metrics       *instrumentation.Metrics
	audit         *instrumentation.AuditLogger
	logger        *slog.Logger

	mu              sync.RWMutex
	gmailClients    map[string]*gmail.Client
	calendarClients map[string]*calendar.Client
	shutdown        bool
}

// NewServerContext creates a ServerContext. Google clients are created
// lazily on first use per account.
func NewServerContext(ctx context.Context, config ContextConfig) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)

	if config.TokenProvider == nil {
		config.TokenProvider = google.NewFileTokenProvider()
	}
	if config.Checkpoints == nil {
		config.Checkpoints = checkpoint.NewMemoryStore()
	}
	if config.Metrics == nil {
		config.Metrics = &instrumentation.Metrics{}
	}
	if config.Audit == nil {
		config.Audit = instrumentation.NewAuditLogger(config.Logger)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		tokenProvider:   config.TokenProvider,
		checkpoints:     config.Checkpoints,
		pubsubTopic:     config.PubSubTopic,
		readOnly:        config.ReadOnly,
		metrics:         config.Metrics,
		audit:           config.Audit,
		logger:          config.Logger,
		gmailClients:    make(map[string]*gmail.Client),
		calendarClients: make(map[string]*calendar.Client),
	}
}

// Context returns the server lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// TokenProvider returns the Google token provider.
func (sc *ServerContext) TokenProvider() google.TokenProvider {
	return sc.tokenProvider
}

// Checkpoints returns the history checkpoint store.
func (sc *ServerContext) Checkpoints() checkpoint.Store {
	return sc.checkpoints
}

// PubSubTopic returns the configured watch topic.
func (sc *ServerContext) PubSubTopic() string {
	return sc.pubsubTopic
}

// ReadOnly reports whether mutating tools are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// Metrics returns the metrics recorder.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Audit returns the audit logger.
func (sc *ServerContext) Audit() *instrumentation.AuditLogger {
	return sc.audit
}

// Logger returns the structured logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// GmailClientForAccount returns a cached Gmail client for the account,
// creating one if a token is available. Returns nil otherwise.
func (sc *ServerContext) GmailClientForAccount(account string) *gmail.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.gmailClients[account]; ok {
		return client
	}

	if !sc.tokenProvider.HasTokenForAccount(account) {
		return nil
	}

	client, err := gmail.NewClientForAccountWithProvider(sc.ctx, account, sc.tokenProvider)
	if err != nil {
		sc.logger.Warn("failed to create Gmail client",
			"account_domain", instrumentation.ExtractUserDomain(account),
			"error", err,
		)
		return nil
	}

	sc.gmailClients[account] = client
	return client
}

// SetGmailClientForAccount injects a Gmail client for the account. Tests
// and the watch command use this.
func (sc *ServerContext) SetGmailClientForAccount(account string, client *gmail.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gmailClients[account] = client
}

// CalendarClientForAccount returns a cached Calendar client for the
// account, creating one if a token is available. Returns nil otherwise.
func (sc *ServerContext) CalendarClientForAccount(account string) *calendar.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.calendarClients[account]; ok {
		return client
	}

	if !sc.tokenProvider.HasTokenForAccount(account) {
		return nil
	}

	client, err := calendar.NewClientForAccountWithProvider(sc.ctx, account, sc.tokenProvider)
	if err != nil {
		sc.logger.Warn("failed to create Calendar client",
			"account_domain", instrumentation.ExtractUserDomain(account),
			"error", err,
		)
		return nil
	}

	sc.calendarClients[account] = client
	return client
}

// SetCalendarClientForAccount injects a Calendar client for the account.
func (sc *ServerContext) SetCalendarClientForAccount(account string, client *calendar.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.calendarClients[account] = client
}

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. Safe to call more than once.
func (sc *ServerContext) Shutdown() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return
	}
	sc.shutdown = true
	sc.cancel()
}
