package types //nolint:revive // package name is intentional

import "time"

// TaskState is the derived state of the scheduling task for a session.
type TaskState string

const (
	TaskNone                 TaskState = "none"
	TaskCollecting           TaskState = "collecting"
	TaskAwaitingConfirmation TaskState = "awaiting_confirmation"
	TaskDone                 TaskState = "done"
	TaskAbandoned            TaskState = "abandoned"
)

// EscalationReason explains why a turn was flagged for a human agent.
type EscalationReason string

const (
	EscalationNone              EscalationReason = ""
	EscalationLowConfidence     EscalationReason = "low_confidence"
	EscalationKnowledgeStreak   EscalationReason = "knowledge_streak"
	EscalationKeyword           EscalationReason = "keyword"
	EscalationRequested         EscalationReason = "requested"
	EscalationOracleUnavailable EscalationReason = "oracle_unavailable"
)

// Classification is the raw, untrusted answer of the language oracle for one message.
type Classification struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   Entities `json:"entities,omitempty"`
}

// KnowledgeAnswer is the output of the knowledge responder.
type KnowledgeAnswer struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}

// HistoryTurn is one exchange kept in the bounded session history.
type HistoryTurn struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Bot       string    `json:"bot"`
}

// Booking is an appointment the customer confirmed.
type Booking struct {
	ReferenceID string    `json:"reference_id"`
	Details     Entities  `json:"details"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// TurnResult is the reply returned to the caller for one turn.
type TurnResult struct {
	SessionID          string           `json:"session_id"`
	Reply              string           `json:"reply"`
	Intent             Intent           `json:"intent"`
	Confidence         float64          `json:"confidence"`
	Entities           Entities         `json:"entities,omitempty"`
	Suggestions        []string         `json:"suggestions,omitempty"`
	RequiresEscalation bool             `json:"requires_escalation"`
	EscalationReason   EscalationReason `json:"escalation_reason,omitempty"`
	TaskState          TaskState        `json:"task_state"`
	ReferenceID        string           `json:"reference_id,omitempty"`
	Booking            *Booking         `json:"booking,omitempty"`
	Degraded           bool             `json:"degraded,omitempty"`
	Timestamp          time.Time        `json:"timestamp"`
}

// TurnRecord is the immutable persistence record emitted after every turn.
type TurnRecord struct {
	SessionID          string           `json:"session_id"`
	UserID             string           `json:"user_id"`
	TurnNumber         int              `json:"turn_number"`
	UserText           string           `json:"user_text"`
	BotText            string           `json:"bot_text"`
	Intent             Intent           `json:"intent"`
	Confidence         float64          `json:"confidence"`
	Entities           Entities         `json:"entities,omitempty"`
	RequiresEscalation bool             `json:"requires_escalation"`
	EscalationReason   EscalationReason `json:"escalation_reason,omitempty"`
	TaskState          TaskState        `json:"task_state"`
	// Booking is set on the turn that confirmed an appointment.
	Booking   *Booking  `json:"booking,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a deep copy.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	dst := *b
	dst.Details = b.Details.Clone()
	return &dst
}
