package supportdesk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/blueberrycongee/supportdesk/internal/config"
	"github.com/blueberrycongee/supportdesk/internal/conversation"
	"github.com/blueberrycongee/supportdesk/internal/knowledge"
	"github.com/blueberrycongee/supportdesk/internal/oracle"
	"github.com/blueberrycongee/supportdesk/internal/resilience"
	"github.com/blueberrycongee/supportdesk/internal/session"
	"github.com/blueberrycongee/supportdesk/internal/transcript"
)

// PolicyFromConfig converts the policy section of a configuration file.
// A nil keyword list keeps the default escalation keywords.
func PolicyFromConfig(pc config.PolicyConfig) Policy {
	keywords := pc.Keywords
	if keywords == nil {
		keywords = conversation.DefaultEscalationKeywords
	}
	return Policy{
		ConfidenceThreshold: pc.ConfidenceThreshold,
		KnowledgeThreshold:  pc.KnowledgeThreshold,
		StreakLimit:         pc.StreakLimit,
		Keywords:            append([]string(nil), keywords...),
	}
}

// NewFromConfig builds a Client and every collaborator named in cfg.
// Resources created here are released by Client.Close.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := buildStore(cfg.Session)
	if err != nil {
		return nil, err
	}

	o, err := oracle.Build(ctx, oracle.BackendConfig{
		Backend:     cfg.Oracle.Backend,
		Model:       cfg.Oracle.Model,
		APIKey:      cfg.Oracle.APIKey,
		BaseURL:     cfg.Oracle.BaseURL,
		Temperature: cfg.Oracle.Temperature,
		MaxTokens:   cfg.Oracle.MaxTokens,
	}, oracle.ResilienceConfig{
		Timeout:       cfg.Oracle.Timeout,
		Attempts:      cfg.Oracle.Attempts,
		RetryDelay:    cfg.Oracle.RetryDelay,
		MaxConcurrent: cfg.Oracle.MaxConcurrent,
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold:    cfg.Oracle.Breaker.FailureThreshold,
			SuccessThreshold:    cfg.Oracle.Breaker.SuccessThreshold,
			Timeout:             cfg.Oracle.Breaker.Timeout,
			HalfOpenMaxRequests: 1,
		},
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build oracle: %w", err)
	}

	var corpus []knowledge.Document
	if cfg.Knowledge.CorpusPath != "" {
		corpus, err = knowledge.LoadCorpus(cfg.Knowledge.CorpusPath)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	sinks, err := buildSinks(ctx, cfg.Transcript, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	base := []Option{
		WithStore(store),
		WithOracle(o),
		WithCorpus(corpus),
		WithKnowledgeCacheTTL(cfg.Knowledge.CacheTTL),
		WithPolicy(PolicyFromConfig(cfg.Policy)),
		WithDispatcherConfig(transcript.DispatcherConfig{
			QueueSize:    cfg.Transcript.QueueSize,
			Workers:      cfg.Transcript.Workers,
			WriteTimeout: cfg.Transcript.WriteTimeout,
		}),
		WithLogger(logger),
	}
	for _, s := range sinks {
		base = append(base, WithSink(s))
	}

	client, err := New(append(base, opts...)...)
	if err != nil {
		closeSinks(ctx, sinks)
		_ = store.Close()
		return nil, err
	}
	logger.Info("supportdesk configured",
		"session_store", cfg.Session.Store,
		"oracle_backend", o.Backend(),
		"oracle_model", o.Model(),
		"transcript_sinks", cfg.Transcript.Sinks,
	)
	return client, nil
}

func buildStore(cfg config.SessionConfig) (session.Store, error) {
	opts := []session.Option{session.WithTTL(cfg.TTL)}
	if cfg.KeyPrefix != "" {
		opts = append(opts, session.WithKeyPrefix(cfg.KeyPrefix))
	}
	if cfg.LockTTL > 0 {
		opts = append(opts, session.WithLockTTL(cfg.LockTTL))
	}
	if session.StoreType(cfg.Store) == session.StoreRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, session.WithRedisClient(rdb))
	}
	store, err := session.NewStore(session.StoreType(cfg.Store), opts...)
	if err != nil {
		return nil, fmt.Errorf("build session store: %w", err)
	}
	return store, nil
}

func buildSinks(ctx context.Context, cfg config.TranscriptConfig, logger *slog.Logger) ([]transcript.Sink, error) {
	var sinks []transcript.Sink
	for _, name := range cfg.Sinks {
		var (
			sink transcript.Sink
			err  error
		)
		switch name {
		case "memory":
			sink = transcript.NewMemorySink()
		case "postgres":
			sink, err = transcript.NewPostgresSink(ctx, transcript.PostgresConfig{
				DSN:          cfg.Postgres.DSN,
				MaxOpenConns: cfg.Postgres.MaxOpenConns,
				MaxIdleConns: cfg.Postgres.MaxIdleConns,
				ConnLifetime: cfg.Postgres.ConnLifetime,
				Migrate:      cfg.Postgres.Migrate,
			})
		case "s3":
			sink, err = transcript.NewS3Sink(ctx, transcript.S3Config{
				Bucket:        cfg.S3.Bucket,
				Region:        cfg.S3.Region,
				AccessKeyID:   cfg.S3.AccessKeyID,
				SecretKey:     cfg.S3.SecretKey,
				Endpoint:      cfg.S3.Endpoint,
				PathPrefix:    cfg.S3.PathPrefix,
				FlushInterval: cfg.S3.FlushInterval,
				BatchSize:     cfg.S3.BatchSize,
			}, logger)
		default:
			err = fmt.Errorf("unknown transcript sink %q", name)
		}
		if err != nil {
			closeSinks(ctx, sinks)
			return nil, fmt.Errorf("build %s sink: %w", name, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func closeSinks(ctx context.Context, sinks []transcript.Sink) {
	var errs []error
	for _, s := range sinks {
		errs = append(errs, s.Close(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		slog.Default().Warn("failed to close transcript sinks", "error", err)
	}
}
