package supportdesk

import (
	"log/slog"
	"time"

	"github.com/blueberrycongee/supportdesk/internal/knowledge"
	"github.com/blueberrycongee/supportdesk/internal/observability"
	"github.com/blueberrycongee/supportdesk/internal/oracle"
	"github.com/blueberrycongee/supportdesk/internal/session"
	"github.com/blueberrycongee/supportdesk/internal/transcript"
)

// ClientConfig contains all configuration for the Client.
type ClientConfig struct {
	// Collaborators. Nil values are replaced with in-process defaults.
	Store     session.Store
	Oracle    oracle.Oracle
	Responder knowledge.Responder

	// Knowledge
	Corpus       []knowledge.Document
	KnowledgeTTL time.Duration // 0 disables the answer cache

	// Escalation
	Policy Policy

	// Transcripts
	Sinks      []transcript.Sink
	Dispatcher transcript.DispatcherConfig

	// Logging
	Logger   *slog.Logger
	Redactor *observability.Redactor

	// Testing hooks
	Clock          func() time.Time
	ReferenceIDGen func() string
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

// defaultConfig returns sensible defaults.
func defaultConfig() *ClientConfig {
	return &ClientConfig{
		KnowledgeTTL: 10 * time.Minute,
		Policy:       DefaultPolicy(),
		Dispatcher:   transcript.DefaultDispatcherConfig(),
		Logger:       slog.Default(),
	}
}

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store session.Store) Option {
	return func(c *ClientConfig) {
		c.Store = store
	}
}

// WithOracle sets the language oracle. Defaults to the rule-based oracle
// wrapped with timeouts, retries and a circuit breaker.
func WithOracle(o oracle.Oracle) Option {
	return func(c *ClientConfig) {
		c.Oracle = o
	}
}

// WithResponder replaces the knowledge responder entirely.
func WithResponder(r knowledge.Responder) Option {
	return func(c *ClientConfig) {
		c.Responder = r
	}
}

// WithCorpus sets the documents searched by the default knowledge responder.
func WithCorpus(docs []knowledge.Document) Option {
	return func(c *ClientConfig) {
		c.Corpus = docs
	}
}

// WithKnowledgeCacheTTL sets how long knowledge answers are cached.
// A zero TTL disables caching.
func WithKnowledgeCacheTTL(ttl time.Duration) Option {
	return func(c *ClientConfig) {
		c.KnowledgeTTL = ttl
	}
}

// WithPolicy sets the escalation thresholds.
func WithPolicy(policy Policy) Option {
	return func(c *ClientConfig) {
		c.Policy = policy
	}
}

// WithSink adds a transcript sink. Records are delivered asynchronously.
func WithSink(sink transcript.Sink) Option {
	return func(c *ClientConfig) {
		c.Sinks = append(c.Sinks, sink)
	}
}

// WithDispatcherConfig tunes the transcript queue.
func WithDispatcherConfig(cfg transcript.DispatcherConfig) Option {
	return func(c *ClientConfig) {
		c.Dispatcher = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// WithRedactor sets the redactor applied to user text before it is logged.
func WithRedactor(r *observability.Redactor) Option {
	return func(c *ClientConfig) {
		c.Redactor = r
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ClientConfig) {
		c.Clock = now
	}
}

// WithReferenceIDGenerator overrides booking reference generation. Intended for tests.
func WithReferenceIDGenerator(gen func() string) Option {
	return func(c *ClientConfig) {
		c.ReferenceIDGen = gen
	}
}
