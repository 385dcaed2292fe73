package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/internal/observability"
	"github.com/blueberrycongee/supportdesk/internal/resilience"
	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// ResilienceConfig bounds every oracle call.
type ResilienceConfig struct {
	// Timeout caps one operation including all retries.
	Timeout time.Duration
	// Attempts is the total number of tries per operation (1 disables retries).
	Attempts uint
	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration
	// Breaker configures the shared circuit breaker.
	Breaker resilience.CircuitBreakerConfig
	// MaxConcurrent caps in-flight calls to the backend (0 means unbounded).
	MaxConcurrent int
}

// DefaultResilienceConfig returns a 10s budget with two attempts.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:    10 * time.Second,
		Attempts:   2,
		RetryDelay: 200 * time.Millisecond,
		Breaker:    resilience.DefaultCircuitBreakerConfig(),
	}
}

// named is implemented by oracles that can report their backend and model.
type named interface {
	Backend() string
	Model() string
}

// Resilient decorates an Oracle with a deadline, retries with backoff, a circuit
// breaker, metrics and tracing. Every error it returns is a *errors.SupportError.
type Resilient struct {
	inner    Oracle
	backend  string
	model    string
	cfg      ResilienceConfig
	breaker  *resilience.CircuitBreaker
	inflight *resilience.Semaphore
	logger   *slog.Logger
}

// NewResilient wraps inner.
func NewResilient(inner Oracle, cfg ResilienceConfig, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 1
	}
	backend, model := "custom", ""
	if n, ok := inner.(named); ok {
		backend, model = n.Backend(), n.Model()
	}

	breaker := resilience.NewCircuitBreaker("oracle-"+backend, cfg.Breaker)
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		metrics.SetCircuitBreakerState(name, int(to))
		logger.Warn("oracle circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	})

	var inflight *resilience.Semaphore
	if cfg.MaxConcurrent > 0 {
		inflight = resilience.NewSemaphore(cfg.MaxConcurrent)
	}

	return &Resilient{
		inner:    inner,
		backend:  backend,
		model:    model,
		cfg:      cfg,
		breaker:  breaker,
		inflight: inflight,
		logger:   logger,
	}
}

// Backend returns the wrapped backend name.
func (r *Resilient) Backend() string { return r.backend }

// Model returns the wrapped model name.
func (r *Resilient) Model() string { return r.model }

// BreakerState exposes the breaker state for readiness checks.
func (r *Resilient) BreakerState() resilience.CircuitState {
	return r.breaker.State()
}

func (r *Resilient) Classify(ctx context.Context, text string, hint Hint) (*types.Classification, error) {
	var out *types.Classification
	err := r.call(ctx, "classify", func(ctx context.Context) error {
		c, err := r.inner.Classify(ctx, text, hint)
		out = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resilient) ExtractEntities(ctx context.Context, text string) (types.Entities, error) {
	var out types.Entities
	err := r.call(ctx, "extract_entities", func(ctx context.Context) error {
		e, err := r.inner.ExtractEntities(ctx, text)
		out = e
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resilient) Generate(ctx context.Context, prompt string, role Role, history []types.HistoryTurn) (string, error) {
	var out string
	err := r.call(ctx, "generate", func(ctx context.Context) error {
		s, err := r.inner.Generate(ctx, prompt, role, history)
		out = s
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (r *Resilient) call(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := observability.StartOracleSpan(ctx, r.backend, r.model, op)
	defer span.End()

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	if r.inflight != nil {
		if err := r.inflight.Acquire(ctx); err != nil {
			err = supporterrors.NewOracleUnavailableError(op, err)
			observability.RecordError(span, err)
			metrics.RecordOracleCall(r.backend, op, "saturated", time.Since(start))
			return err
		}
		defer r.inflight.Release()
	}

	err := retry.Do(
		func() error {
			return r.breaker.Execute(ctx, fn)
		},
		retry.Context(ctx),
		retry.Attempts(r.cfg.Attempts),
		retry.Delay(r.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			metrics.OracleRetries.WithLabelValues(r.backend, op).Inc()
			r.logger.Debug("retrying oracle call", "op", op, "attempt", n+1, "error", err)
		}),
	)

	status := "success"
	if err != nil {
		err = normalizeError(op, err)
		status = errorStatus(err)
		observability.RecordError(span, err)
	}
	metrics.RecordOracleCall(r.backend, op, status, time.Since(start))
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return supporterrors.IsRetryable(err)
}

// normalizeError guarantees a SupportError so callers can branch on its type.
func normalizeError(op string, err error) error {
	var se *supporterrors.SupportError
	if errors.As(err, &se) {
		return err
	}
	return supporterrors.NewOracleUnavailableError(op, err)
}

func errorStatus(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case supporterrors.IsType(err, supporterrors.TypeMalformedOracleOutput):
		return "malformed"
	default:
		return "error"
	}
}
