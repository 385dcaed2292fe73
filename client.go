package supportdesk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blueberrycongee/supportdesk/internal/conversation"
	"github.com/blueberrycongee/supportdesk/internal/knowledge"
	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/internal/observability"
	"github.com/blueberrycongee/supportdesk/internal/oracle"
	"github.com/blueberrycongee/supportdesk/internal/session"
	"github.com/blueberrycongee/supportdesk/internal/transcript"
	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
)

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("supportdesk: client closed")

// Client is the main entry point for supportdesk library mode.
// It owns the session store, the oracle, the knowledge responder and the
// transcript dispatcher, and runs turns through the conversation pipeline.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	pipeline   *conversation.Pipeline
	store      session.Store
	oracle     oracle.Oracle
	dispatcher *transcript.Dispatcher
	logger     *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a new supportdesk client with the given options.
//
// Example:
//
//	client, err := supportdesk.New(
//	    supportdesk.WithStore(redisStore),
//	    supportdesk.WithSink(transcript.NewMemorySink()),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	c := &Client{
		store:  cfg.Store,
		oracle: cfg.Oracle,
		logger: cfg.Logger,
	}
	if c.store == nil {
		c.store = session.NewMemoryStore()
	}
	if c.oracle == nil {
		c.oracle = oracle.NewResilient(oracle.NewRules(), oracle.DefaultResilienceConfig(), cfg.Logger)
	}

	responder := cfg.Responder
	if responder == nil {
		docs := cfg.Corpus
		if len(docs) == 0 {
			docs = knowledge.DefaultCorpus()
		}
		responder = knowledge.NewCorpusResponder(docs, c.oracle, cfg.Logger)
		if cfg.KnowledgeTTL > 0 {
			responder = knowledge.NewCachedResponder(responder, cfg.KnowledgeTTL)
		}
	}

	redactor := cfg.Redactor
	if redactor == nil {
		redactor = observability.NewRedactor()
	}
	pipelineOpts := []conversation.Option{
		conversation.WithPolicy(cfg.Policy),
		conversation.WithLogger(observability.Wrap(cfg.Logger, redactor)),
	}
	if len(cfg.Sinks) > 0 {
		c.dispatcher = transcript.NewDispatcher(cfg.Dispatcher, cfg.Logger, cfg.Sinks...)
		pipelineOpts = append(pipelineOpts, conversation.WithRecorder(c.dispatcher))
	}
	if cfg.Clock != nil {
		pipelineOpts = append(pipelineOpts, conversation.WithClock(cfg.Clock))
	}
	if cfg.ReferenceIDGen != nil {
		pipelineOpts = append(pipelineOpts, conversation.WithReferenceGenerator(cfg.ReferenceIDGen))
	}
	c.pipeline = conversation.NewPipeline(c.store, c.oracle, responder, pipelineOpts...)

	c.logger.Info("supportdesk client initialized",
		"sinks", len(cfg.Sinks),
		"knowledge_cache", cfg.KnowledgeTTL > 0,
	)
	return c, nil
}

// ProcessTurn handles one user message. An empty sessionID starts a new session
// and an empty userID is recorded as anonymous. It never fails: collaborator
// errors are turned into an apology that requires escalation.
func (c *Client) ProcessTurn(ctx context.Context, sessionID, text, userID string) *TurnResult {
	return c.pipeline.ProcessTurn(ctx, conversation.TurnRequest{
		SessionID: sessionID,
		Text:      text,
		UserID:    userID,
	})
}

// Session returns a snapshot of one session.
func (c *Client) Session(ctx context.Context, sessionID string) (*Session, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	sess, err := c.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrUnknownSession) {
		return nil, supporterrors.NewUnknownSessionError(sessionID)
	}
	return sess, err
}

// Sessions lists every stored session, oldest first.
func (c *Client) Sessions(ctx context.Context) ([]SessionSummary, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(all))
	for _, s := range all {
		out = append(out, s.Summarize())
	}
	metrics.ActiveSessions.Set(float64(len(out)))
	return out, nil
}

// ClearSession removes a session. It reports false when the session did not exist.
func (c *Client) ClearSession(ctx context.Context, sessionID string) (bool, error) {
	if c.closed.Load() {
		return false, ErrClosed
	}
	deleted, err := c.store.Delete(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if deleted {
		c.logger.Info("session cleared", "session_id", sessionID)
	}
	return deleted, nil
}

// Policy returns the active escalation policy.
func (c *Client) Policy() Policy {
	return c.pipeline.Policy()
}

// SetPolicy replaces the escalation policy. Turns already running keep the
// policy they started with.
func (c *Client) SetPolicy(policy Policy) error {
	return c.pipeline.SetPolicy(policy)
}

// Ready reports whether the client can serve turns.
func (c *Client) Ready(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if p, ok := c.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes pending transcripts and releases the session store.
// It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		var errs []error
		if c.dispatcher != nil {
			if err := c.dispatcher.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close transcripts: %w", err))
			}
		}
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
		c.closeErr = errors.Join(errs...)
		c.logger.Info("supportdesk client closed")
	})
	return c.closeErr
}
