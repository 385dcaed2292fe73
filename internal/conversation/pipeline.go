// Package conversation implements the per-turn orchestration: classify the
// message, update the session's task state, pick a reply and decide whether a
// human agent has to take over.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/blueberrycongee/supportdesk/internal/knowledge"
	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/internal/observability"
	"github.com/blueberrycongee/supportdesk/internal/oracle"
	"github.com/blueberrycongee/supportdesk/internal/session"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// TurnRequest is one inbound user message.
type TurnRequest struct {
	SessionID string
	Text      string
	UserID    string
}

// Recorder receives a record of every completed turn. Implementations must not block.
type Recorder interface {
	Emit(rec types.TurnRecord) bool
}

// Pipeline processes conversation turns. It is safe for concurrent use; turns
// of the same session are serialized by the session store.
type Pipeline struct {
	store     session.Store
	oracle    oracle.Oracle
	knowledge knowledge.Responder
	recorder  Recorder
	logger    *observability.Logger
	policy    atomic.Pointer[Policy]

	now            func() time.Time
	newReferenceID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPolicy sets the initial escalation policy.
func WithPolicy(policy Policy) Option {
	return func(p *Pipeline) {
		pol := policy.clone()
		p.policy.Store(&pol)
	}
}

// WithRecorder sets the destination of turn records.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithReferenceGenerator overrides booking reference generation.
func WithReferenceGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		p.newReferenceID = gen
	}
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(store session.Store, o oracle.Oracle, responder knowledge.Responder, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:          store,
		oracle:         o,
		knowledge:      responder,
		logger:         observability.Wrap(slog.Default(), observability.NewRedactor()),
		now:            func() time.Time { return time.Now().UTC() },
		newReferenceID: NewReferenceID,
	}
	def := DefaultPolicy()
	p.policy.Store(&def)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the active escalation policy.
func (p *Pipeline) Policy() Policy {
	return *p.policy.Load()
}

// SetPolicy atomically replaces the escalation policy. Turns already in
// progress finish under the policy they started with.
func (p *Pipeline) SetPolicy(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	pol := policy.clone()
	p.policy.Store(&pol)
	return nil
}

// ProcessTurn handles one message. It never fails: collaborator errors and
// panics produce an apology result instead.
func (p *Pipeline) ProcessTurn(ctx context.Context, req TurnRequest) (result *types.TurnResult) {
	start := time.Now()
	if req.SessionID == "" {
		req.SessionID = session.NewSessionID()
	}
	if req.UserID == "" {
		req.UserID = session.DefaultUserID
	}

	ctx, span := observability.StartTurnSpan(ctx, req.SessionID)
	defer span.End()
	log := p.logger.WithRequestID(ctx).WithSession(req.SessionID)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			log.RedactedError("turn panicked", "error", err)
			observability.RecordError(span, err)
			metrics.TurnFailuresTotal.WithLabelValues("panic").Inc()
			result = p.apology(req.SessionID)
		}
	}()

	var (
		res    *types.TurnResult
		before types.TaskState
	)
	policy := p.Policy()
	updated, err := p.store.Update(ctx, req.SessionID, req.UserID, func(c *session.Context) error {
		before = c.TaskState()
		res = p.runTurn(ctx, c, req.Text, policy)
		return nil
	})
	if err != nil {
		log.RedactedError("session update failed", "error", err)
		observability.RecordError(span, err)
		metrics.TurnFailuresTotal.WithLabelValues("store").Inc()
		return p.apology(req.SessionID)
	}

	p.emit(updated, req, res)

	metrics.RecordTurn(string(res.Intent), string(res.TaskState), time.Since(start))
	metrics.RecordTaskTransition(string(before), string(res.TaskState))
	if res.RequiresEscalation {
		metrics.RecordEscalation(string(res.EscalationReason))
	}
	if res.Degraded {
		metrics.DegradedTurnsTotal.Inc()
	}
	observability.RecordTurn(span, string(res.Intent), res.Confidence, res.RequiresEscalation, string(res.TaskState))

	log.RedactedInfo("turn processed",
		"intent", string(res.Intent),
		"confidence", res.Confidence,
		"task_state", string(res.TaskState),
		"requires_escalation", res.RequiresEscalation,
		"escalation_reason", string(res.EscalationReason),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// runTurn applies one message to c. It runs inside the store transaction.
func (p *Pipeline) runTurn(ctx context.Context, c *session.Context, text string, policy Policy) *types.TurnResult {
	now := p.now()
	c.TurnCount++

	cls := p.classify(ctx, c, text)
	c.CurrentIntent = cls.intent

	var out outcome
	if reason := policy.forcedEscalation(text, cls); reason != types.EscalationNone {
		out = p.escalate(ctx, c, text, cls, reason)
	} else {
		out = p.route(ctx, c, text, cls)
	}

	switch {
	case out.keepStreak:
	case out.answered && out.knowledgeScore < policy.KnowledgeThreshold:
		c.EscalationTriggers++
		if c.EscalationTriggers >= policy.StreakLimit {
			out.reply = p.escalationReply(ctx, text, c.History)
			out.escalation = types.EscalationKnowledgeStreak
		}
	default:
		c.EscalationTriggers = 0
	}

	if out.escalation != types.EscalationNone {
		c.Status = session.StatusEscalated
	}
	if out.state == "" {
		out.state = c.TaskState()
	}
	if out.reply == "" {
		out.reply = ApologyReply
	}

	c.AppendHistory(text, out.reply, now)

	entities := out.entities
	if entities == nil {
		entities = cls.entities
	}
	return &types.TurnResult{
		SessionID:          c.SessionID,
		Reply:              out.reply,
		Intent:             cls.intent,
		Confidence:         cls.confidence,
		Entities:           entities.Clone(),
		Suggestions:        suggestionsFor(cls.intent, out.state, out.escalation != types.EscalationNone),
		RequiresEscalation: out.escalation != types.EscalationNone,
		EscalationReason:   out.escalation,
		TaskState:          out.state,
		ReferenceID:        out.referenceID,
		Booking:            out.booking,
		Degraded:           cls.degraded,
		Timestamp:          now,
	}
}

// escalate builds the hand-off outcome. The task fields are left alone so the
// customer can pick the task up again on the next turn.
func (p *Pipeline) escalate(ctx context.Context, c *session.Context, text string, cls classified, reason types.EscalationReason) outcome {
	out := outcome{escalation: reason, entities: cls.entities}
	switch {
	case cls.degraded:
		out.reply = ApologyReply
	case reason == types.EscalationRequested:
		out.reply = p.escalationReply(ctx, text, c.History)
		out.keepStreak = true
	default:
		out.reply = p.escalationReply(ctx, text, c.History)
	}
	return out
}

func (p *Pipeline) apology(sessionID string) *types.TurnResult {
	return &types.TurnResult{
		SessionID:          sessionID,
		Reply:              ApologyReply,
		Intent:             types.IntentKnowledgeQuery,
		Confidence:         FallbackConfidence,
		Suggestions:        append([]string(nil), errorSuggestions...),
		RequiresEscalation: true,
		EscalationReason:   types.EscalationLowConfidence,
		TaskState:          types.TaskNone,
		Degraded:           true,
		Timestamp:          p.now(),
	}
}

func (p *Pipeline) emit(c *session.Context, req TurnRequest, res *types.TurnResult) {
	if p.recorder == nil || c == nil {
		return
	}
	rec := types.TurnRecord{
		SessionID:          res.SessionID,
		UserID:             c.UserID,
		TurnNumber:         c.TurnCount,
		UserText:           strings.TrimSpace(req.Text),
		BotText:            res.Reply,
		Intent:             res.Intent,
		Confidence:         res.Confidence,
		Entities:           res.Entities.Clone(),
		RequiresEscalation: res.RequiresEscalation,
		EscalationReason:   res.EscalationReason,
		TaskState:          res.TaskState,
		Booking:            res.Booking.Clone(),
		Timestamp:          res.Timestamp,
	}
	if !p.recorder.Emit(rec) {
		p.logger.Debug("turn record dropped", "session_id", res.SessionID, "turn", c.TurnCount)
	}
}
