package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/blueberrycongee/supportdesk/internal/session"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// SchedulingKeywords start a scheduling task when an action request contains one.
var SchedulingKeywords = []string{"appointment", "schedule", "book", "booking", "meeting", "demo", "consultation"}

// AffirmativeWords confirm a pending task. Matching is by whole word.
var AffirmativeWords = []string{"yes", "correct", "confirm", "good", "right", "ok"}

var wordPattern = regexp.MustCompile(`[a-z]+`)

func isSchedulingRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range SchedulingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsAffirmative reports whether text contains an affirmative word.
func IsAffirmative(text string) bool {
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		for _, a := range AffirmativeWords {
			if w == a {
				return true
			}
		}
	}
	return false
}

// NewReferenceID returns an 8 character upper-case booking reference.
func NewReferenceID() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

// taskOutcome is what a task handler did to the session.
type taskOutcome struct {
	reply       string
	state       types.TaskState
	referenceID string
	entities    types.Entities
	booking     *types.Booking
}

// extract asks the oracle for slot values. Failures yield no entities.
func (p *Pipeline) extract(ctx context.Context, text string) types.Entities {
	entities, err := p.oracle.ExtractEntities(ctx, text)
	if err != nil {
		p.logger.RedactedWarn("entity extraction failed", "error", err)
		return types.Entities{}
	}
	return entities.Normalized()
}

// fillSlots merges extracted values and moves the task to COLLECTING or
// AWAITING_CONFIRMATION depending on completeness.
func (p *Pipeline) fillSlots(c *session.Context, extracted types.Entities) taskOutcome {
	starting := c.CurrentAction == session.ActionNone
	if c.CollectedInfo == nil {
		c.CollectedInfo = types.Entities{}
	}
	c.CollectedInfo.Merge(extracted)
	c.CurrentAction = session.ActionScheduleAppointment

	if missing := c.MissingSlots(); len(missing) > 0 {
		return taskOutcome{
			reply:    missingSlotsReply(missing, starting),
			state:    types.TaskCollecting,
			entities: extracted,
		}
	}

	c.AwaitingConfirmation = true
	c.ReferenceID = p.newReferenceID()
	return taskOutcome{
		reply:       confirmationSummary(c.CollectedInfo, session.RequiredSlots, c.ReferenceID),
		state:       types.TaskAwaitingConfirmation,
		referenceID: c.ReferenceID,
		entities:    extracted,
	}
}

// confirm resolves a pending task. The decision is binary: anything that is
// not affirmative abandons the task and discards the collected details.
func (p *Pipeline) confirm(c *session.Context, text string) taskOutcome {
	if IsAffirmative(text) {
		ref := c.ReferenceID
		if ref == "" {
			ref = p.newReferenceID()
		}
		reply := bookedReply(c.CollectedInfo, ref)
		booking := &types.Booking{
			ReferenceID: ref,
			Details:     c.CollectedInfo.Clone(),
			ConfirmedAt: p.now(),
		}
		c.ClearTask(false)
		return taskOutcome{reply: reply, state: types.TaskDone, referenceID: ref, booking: booking}
	}

	c.ClearTask(true)
	return taskOutcome{reply: abandonedReply, state: types.TaskAbandoned}
}
