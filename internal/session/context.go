// Package session holds per-conversation state and the stores that persist it.
//
// A Context is only mutated inside Store.Update, which serializes all turns of one
// session while leaving other sessions free to proceed in parallel.
package session

import (
	"time"

	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// MaxHistory bounds the number of exchanges kept per session.
const MaxHistory = 10

// DefaultUserID is assigned when a caller does not identify the user.
const DefaultUserID = "anonymous"

// Action names the multi-turn task a session is working on.
type Action string

const (
	ActionNone                Action = ""
	ActionScheduleAppointment Action = "schedule_appointment"
)

// Status is the informational lifecycle status of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusEscalated Status = "escalated"
)

// RequiredSlots are the fields a scheduling task needs before it can be confirmed.
var RequiredSlots = []string{
	types.SlotName,
	types.SlotEmail,
	types.SlotPhone,
	types.SlotServiceType,
	types.SlotDate,
	types.SlotTime,
}

// Context is the conversation state of one session.
type Context struct {
	SessionID            string              `json:"session_id"`
	UserID               string              `json:"user_id"`
	CurrentIntent        types.Intent        `json:"current_intent,omitempty"`
	CurrentAction        Action              `json:"current_action,omitempty"`
	CollectedInfo        types.Entities      `json:"collected_info"`
	AwaitingConfirmation bool                `json:"awaiting_confirmation"`
	EscalationTriggers   int                 `json:"escalation_triggers"`
	History              []types.HistoryTurn `json:"history"`
	ReferenceID          string              `json:"reference_id,omitempty"`
	Status               Status              `json:"status"`
	TurnCount            int                 `json:"turn_count"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
	Version              int64               `json:"version"`
}

// NewContext returns a fresh context with no task and empty history.
func NewContext(sessionID, userID string) *Context {
	if userID == "" {
		userID = DefaultUserID
	}
	now := time.Now().UTC()
	return &Context{
		SessionID:     sessionID,
		UserID:        userID,
		CollectedInfo: types.Entities{},
		History:       []types.HistoryTurn{},
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MissingSlots returns the required slots that are still empty, in canonical order.
func (c *Context) MissingSlots() []string {
	var missing []string
	for _, slot := range RequiredSlots {
		if !c.CollectedInfo.Has(slot) {
			missing = append(missing, slot)
		}
	}
	return missing
}

// Complete reports whether every required slot holds a value.
func (c *Context) Complete() bool {
	return len(c.MissingSlots()) == 0
}

// TaskState derives the scheduling task state from the context fields.
// DONE and ABANDONED are transient: once the turn that produced them is over
// the context reads as NONE again.
func (c *Context) TaskState() types.TaskState {
	switch {
	case c.AwaitingConfirmation:
		return types.TaskAwaitingConfirmation
	case c.CurrentAction == ActionScheduleAppointment:
		return types.TaskCollecting
	default:
		return types.TaskNone
	}
}

// AppendHistory records an exchange and drops the oldest entries beyond MaxHistory.
func (c *Context) AppendHistory(user, bot string, at time.Time) {
	c.History = append(c.History, types.HistoryTurn{Timestamp: at, User: user, Bot: bot})
	if over := len(c.History) - MaxHistory; over > 0 {
		c.History = append([]types.HistoryTurn(nil), c.History[over:]...)
	}
}

// ClearTask resets the task fields. Collected info is kept unless dropInfo is set.
func (c *Context) ClearTask(dropInfo bool) {
	c.CurrentAction = ActionNone
	c.AwaitingConfirmation = false
	c.ReferenceID = ""
	if dropInfo {
		c.CollectedInfo = types.Entities{}
	}
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	dst := *c
	dst.CollectedInfo = c.CollectedInfo.Clone()
	if dst.CollectedInfo == nil {
		dst.CollectedInfo = types.Entities{}
	}
	dst.History = make([]types.HistoryTurn, len(c.History))
	copy(dst.History, c.History)
	return &dst
}

// Summary is the listing view of a session.
type Summary struct {
	SessionID     string          `json:"session_id"`
	UserID        string          `json:"user_id"`
	Status        Status          `json:"status"`
	CurrentIntent types.Intent    `json:"current_intent,omitempty"`
	TaskState     types.TaskState `json:"task_state"`
	TurnCount     int             `json:"turn_count"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Summarize returns the listing view of c.
func (c *Context) Summarize() Summary {
	return Summary{
		SessionID:     c.SessionID,
		UserID:        c.UserID,
		Status:        c.Status,
		CurrentIntent: c.CurrentIntent,
		TaskState:     c.TaskState(),
		TurnCount:     c.TurnCount,
		UpdatedAt:     c.UpdatedAt,
	}
}
