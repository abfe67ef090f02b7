package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/pushbox/internal/checkpoint"
	"github.com/teemow/pushbox/internal/gmail"
	"github.com/teemow/pushbox/internal/logging"
	"github.com/teemow/pushbox/internal/pubsub"
)

// State names one stage of delivery processing.
type State int

const (
	StateReceived State = iota
	StateVerified
	StateDecoded
	StateIdentified
	StateEnumerated
	StateCheckpointed
	StateResponded
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateVerified:
		return "verified"
	case StateDecoded:
		return "decoded"
	case StateIdentified:
		return "identified"
	case StateEnumerated:
		return "enumerated"
	case StateCheckpointed:
		return "checkpointed"
	case StateResponded:
		return "responded"
	default:
		return "unknown"
	}
}

// TokenVerifier validates the broker's push identity token.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken, expectedSignerEmail string) (*pubsub.Claims, error)
}

// Enumerator walks mailbox history forward from a cursor using the
// credential carried on the delivery.
type Enumerator interface {
	EnumerateSince(ctx context.Context, accessToken, startCursor string) (*gmail.HistoryResult, error)
}

// GmailEnumerator is the production Enumerator: a short-lived Gmail client
// per delivery, authenticated with the delivery's bearer token.
type GmailEnumerator struct{}

func (GmailEnumerator) EnumerateSince(ctx context.Context, accessToken, startCursor string) (*gmail.HistoryResult, error) {
	client, err := gmail.NewClientFromAccessToken(ctx, "push", accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to build Gmail client: %w", err)
	}
	return client.EnumerateNewMessages(ctx, startCursor)
}

// Observer receives delivery outcomes for metrics.
type Observer interface {
	DeliveryProcessed(ctx context.Context, server, result string, seconds float64)
	ResyncPerformed(ctx context.Context, server string)
	RecordCheckpointOperation(ctx context.Context, operation, result string)
	RecordHistoryPages(ctx context.Context, pages int)
}

// Delivery is one inbound push request after header extraction.
type Delivery struct {
	// ID correlates log lines for one delivery.
	ID string

	// ServerName identifies the tenant, from the server-name header.
	ServerName string

	// AccessToken is the Google access token from the upstream-credential
	// header, used for history enumeration.
	AccessToken string

	// PushToken is the broker's identity token from the Authorization header.
	PushToken string

	// Body is the raw JSON push envelope.
	Body []byte
}

// Pipeline orchestrates delivery processing. One instance serves all
// tenants; every Process call is independent and safe to run concurrently.
// Concurrent deliveries for the same tenant race last-write-wins on the
// checkpoint; the broker's retry semantics are the recovery mechanism.
type Pipeline struct {
	verifier    TokenVerifier
	enumerator  Enumerator
	checkpoints checkpoint.Store
	project     string
	logger      *slog.Logger
	observer    Observer
}

// NewPipeline wires a delivery pipeline. observer may be nil.
func NewPipeline(verifier TokenVerifier, enumerator Enumerator, checkpoints checkpoint.Store, project string, logger *slog.Logger, observer Observer) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		verifier:    verifier,
		enumerator:  enumerator,
		checkpoints: checkpoints,
		project:     project,
		logger:      logger,
		observer:    observer,
	}
}

// Process runs one delivery through the state machine and returns either an
// acknowledgement response or a classified error.
func (p *Pipeline) Process(ctx context.Context, d Delivery) (*Response, error) {
	start := time.Now()
	logger := p.logger.With(
		slog.String(logging.KeyDelivery, d.ID),
		slog.String(logging.KeyServer, d.ServerName),
	)

	resp, err := p.process(ctx, d, logger)

	result := logging.StatusSuccess
	if err != nil {
		result = logging.StatusError
		logger.Warn("delivery failed",
			slog.String(logging.KeyError, err.Error()),
			slog.Duration(logging.KeyDuration, time.Since(start)))
	} else {
		logger.Info("delivery processed",
			slog.Duration(logging.KeyDuration, time.Since(start)))
	}
	if p.observer != nil {
		p.observer.DeliveryProcessed(ctx, d.ServerName, result, time.Since(start).Seconds())
	}

	return resp, err
}

func (p *Pipeline) process(ctx context.Context, d Delivery, logger *slog.Logger) (*Response, error) {
	// Received. The tenant name is needed before verification because the
	// expected signer identity is derived from it.
	if d.ServerName == "" {
		return nil, malformed("missing server name header")
	}

	// Received -> Verified
	expectedSigner := pubsub.DeriveSignerEmail(d.ServerName, p.project)
	claims, err := p.verifier.Verify(ctx, d.PushToken, expectedSigner)
	if err != nil {
		return nil, err
	}
	logger.Debug("push token verified",
		slog.String(logging.KeyUserHash, logging.AnonymizeEmail(claims.Email)))

	// Verified -> Decoded
	var push pubsub.PushRequest
	if err := json.Unmarshal(d.Body, &push); err != nil {
		return nil, malformed("undecodable push envelope: %v", err)
	}
	notification := push.Message.Notification()

	// Decoded -> Identified
	if d.AccessToken == "" {
		return nil, malformed("missing upstream credential header")
	}

	// Identified -> Enumerated. Enumeration starts from the STORED cursor;
	// the delivery's own cursor is only a hint of the broker's state and is
	// never a trusted resumption point.
	stored, err := p.checkpoints.Get(ctx, d.ServerName)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			p.observeCheckpoint(ctx, "get", "miss")
			return nil, malformed("watch not initialized for server %q", d.ServerName)
		}
		p.observeCheckpoint(ctx, "get", logging.StatusError)
		return nil, fmt.Errorf("failed to read checkpoint for %s: %w", d.ServerName, err)
	}
	p.observeCheckpoint(ctx, "get", logging.StatusSuccess)

	result, err := p.enumerator.EnumerateSince(ctx, d.AccessToken, stored)
	if err != nil {
		if errors.Is(err, gmail.ErrStaleHistoryID) {
			return p.resynchronize(ctx, d, notification, logger, err)
		}
		return nil, fmt.Errorf("history enumeration failed: %w", err)
	}
	if p.observer != nil {
		p.observer.RecordHistoryPages(ctx, result.Pages)
	}

	// Enumerated -> Checkpointed. The delivery's as-of cursor wins when
	// present; the enumerator's observed frontier is the fallback. Written
	// before the response so a crash afterwards cannot cause reprocessing.
	newCursor := notification.HistoryID
	if newCursor == "" {
		newCursor = result.NewHistoryID
	}
	if err := p.checkpoints.Put(ctx, d.ServerName, newCursor); err != nil {
		p.observeCheckpoint(ctx, "put", logging.StatusError)
		return nil, fmt.Errorf("failed to advance checkpoint for %s: %w", d.ServerName, err)
	}
	p.observeCheckpoint(ctx, "put", logging.StatusSuccess)
	logger.Debug("checkpoint advanced",
		slog.String(logging.KeyHistoryID, newCursor),
		slog.Int("message_count", len(result.MessageIDs)),
		slog.Bool("truncated", result.Truncated))

	// Checkpointed -> Responded
	if len(result.MessageIDs) == 0 {
		return accepted(), nil
	}
	return acceptedWithItems(d.ServerName, notification.EmailAddress, result.MessageIDs, result.Truncated), nil
}

// resynchronize recovers from a stale stored cursor. When the delivery
// carries its own as-of cursor the checkpoint is re-seeded from it and the
// delivery acknowledged with zero items; the skipped gap is unrecoverable
// anyway once the history window has expired. Without a usable cursor the
// error propagates so the broker retries and operators notice.
func (p *Pipeline) resynchronize(ctx context.Context, d Delivery, n pubsub.Notification, logger *slog.Logger, cause error) (*Response, error) {
	if n.HistoryID == "" {
		return nil, fmt.Errorf("stored cursor stale and delivery carries no replacement: %w", cause)
	}

	if err := p.checkpoints.Put(ctx, d.ServerName, n.HistoryID); err != nil {
		p.observeCheckpoint(ctx, "put", logging.StatusError)
		return nil, fmt.Errorf("failed to re-seed checkpoint for %s: %w", d.ServerName, err)
	}
	p.observeCheckpoint(ctx, "put", logging.StatusSuccess)

	logger.Warn("checkpoint resynchronized after stale cursor",
		slog.String(logging.KeyHistoryID, n.HistoryID),
		slog.String(logging.KeyError, cause.Error()))
	if p.observer != nil {
		p.observer.ResyncPerformed(ctx, d.ServerName)
	}

	return accepted(), nil
}

func (p *Pipeline) observeCheckpoint(ctx context.Context, operation, result string) {
	if p.observer != nil {
		p.observer.RecordCheckpointOperation(ctx, operation, result)
	}
}
