package conversation

import (
	"context"

	"github.com/blueberrycongee/supportdesk/internal/oracle"
	"github.com/blueberrycongee/supportdesk/internal/session"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// classified is a validated classification.
type classified struct {
	intent     types.Intent
	confidence float64
	entities   types.Entities
	degraded   bool
}

// outcome is the result of routing one turn.
type outcome struct {
	reply       string
	state       types.TaskState
	referenceID string
	entities    types.Entities
	booking     *types.Booking
	escalation  types.EscalationReason
	// answered is set when the knowledge responder produced the reply.
	answered       bool
	knowledgeScore float64
	// keepStreak leaves the streak counter untouched.
	keepStreak bool
}

// classify calls the oracle and validates its answer. Oracle failures and
// unknown labels fall back to a low-confidence knowledge query.
func (p *Pipeline) classify(ctx context.Context, c *session.Context, text string) classified {
	hint := oracle.Hint{
		CurrentAction:        string(c.CurrentAction),
		AwaitingConfirmation: c.AwaitingConfirmation,
		History:              c.History,
	}
	if c.CurrentAction != session.ActionNone {
		hint.MissingSlots = c.MissingSlots()
	}

	raw, err := p.oracle.Classify(ctx, text, hint)
	if err != nil {
		p.logger.RedactedWarn("classification failed, using fallback", "error", err)
		return classified{intent: types.IntentKnowledgeQuery, confidence: FallbackConfidence, degraded: true}
	}

	intent, ok := types.ParseIntent(raw.Intent)
	if !ok {
		p.logger.RedactedDebug("unmapped intent label", "label", raw.Intent)
		return classified{intent: types.IntentKnowledgeQuery, confidence: FallbackConfidence}
	}
	confidence, ok := oracle.ClampConfidence(raw.Confidence)
	if !ok {
		confidence = FallbackConfidence
	}
	return classified{intent: intent, confidence: confidence, entities: raw.Entities.Normalized()}
}

// route runs the handler for a turn that was not escalated up front.
func (p *Pipeline) route(ctx context.Context, c *session.Context, text string, cls classified) outcome {
	switch c.TaskState() {
	case types.TaskAwaitingConfirmation:
		return fromTask(p.confirm(c, text))
	case types.TaskCollecting:
		switch cls.intent {
		case types.IntentActionRequest, types.IntentConfirmation, types.IntentUnclassified:
			return fromTask(p.fillSlots(c, p.turnEntities(ctx, text, cls)))
		case types.IntentKnowledgeQuery:
			// Answers such as "it's john@example.com" are often classified as
			// questions; treat them as slot values when extraction finds any.
			if entities := p.turnEntities(ctx, text, cls); len(entities) > 0 {
				return fromTask(p.fillSlots(c, entities))
			}
		}
	}

	switch cls.intent {
	case types.IntentGreeting:
		return outcome{reply: p.generate(ctx, text, oracle.RoleGreeting, c.History, greetingReply)}
	case types.IntentGoodbye:
		return outcome{reply: p.generate(ctx, text, oracle.RoleGoodbye, c.History, goodbyeReply)}
	case types.IntentKnowledgeQuery, types.IntentUnclassified:
		return p.answer(ctx, text)
	case types.IntentActionRequest:
		if isSchedulingRequest(text) {
			return fromTask(p.fillSlots(c, p.turnEntities(ctx, text, cls)))
		}
		return outcome{reply: genericActionReply}
	case types.IntentConfirmation:
		return outcome{reply: acknowledgementReply}
	case types.IntentHumanEscalation:
		// Escalated before routing; kept so the switch stays exhaustive.
		return outcome{reply: p.escalationReply(ctx, text, c.History), escalation: types.EscalationRequested, keepStreak: true}
	default:
		return p.answer(ctx, text)
	}
}

// turnEntities combines entities from the classification with a dedicated extraction.
func (p *Pipeline) turnEntities(ctx context.Context, text string, cls classified) types.Entities {
	entities := cls.entities.Clone()
	if entities == nil {
		entities = types.Entities{}
	}
	entities.Merge(p.extract(ctx, text))
	return entities
}

func (p *Pipeline) answer(ctx context.Context, text string) outcome {
	ans, err := p.knowledge.Answer(ctx, text)
	if err != nil || ans == nil {
		p.logger.RedactedWarn("knowledge responder failed", "error", err)
		return outcome{reply: ApologyReply, answered: true}
	}
	return outcome{reply: ans.Answer, answered: true, knowledgeScore: ans.Confidence}
}

func (p *Pipeline) escalationReply(ctx context.Context, text string, history []types.HistoryTurn) string {
	return p.generate(ctx, text, oracle.RoleEscalation, history, escalationReply)
}

// generate asks the oracle for a reply in the given role, falling back to a canned text.
func (p *Pipeline) generate(ctx context.Context, text string, role oracle.Role, history []types.HistoryTurn, fallback string) string {
	reply, err := p.oracle.Generate(ctx, text, role, history)
	if err != nil || reply == "" {
		if err != nil {
			p.logger.RedactedDebug("reply generation failed, using canned reply", "role", string(role), "error", err)
		}
		return fallback
	}
	return reply
}

func fromTask(t taskOutcome) outcome {
	return outcome{reply: t.reply, state: t.state, referenceID: t.referenceID, entities: t.entities, booking: t.booking}
}
