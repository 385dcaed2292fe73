// Package oracle wraps the external language model used for intent classification,
// entity extraction and reply generation.
//
// Oracle output is untrusted: every backend may time out, fail, or return text that
// does not parse. Backends report such problems as *errors.SupportError values and
// the conversation pipeline degrades instead of failing the turn.
package oracle

import (
	"context"

	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// Role selects the voice a generated reply should take.
type Role string

const (
	RoleGreeting   Role = "greeting"
	RoleGoodbye    Role = "goodbye"
	RoleKnowledge  Role = "knowledge"
	RoleEscalation Role = "escalation"
	RoleFallback   Role = "fallback"
)

// Hint carries the session state the classifier may use to disambiguate a message.
type Hint struct {
	CurrentAction        string
	AwaitingConfirmation bool
	MissingSlots         []string
	History              []types.HistoryTurn
}

// Oracle is the language capability the pipeline depends on.
type Oracle interface {
	// Classify labels text with an intent, a confidence and any entities it spotted.
	Classify(ctx context.Context, text string, hint Hint) (*types.Classification, error)

	// ExtractEntities pulls scheduling slot values out of text.
	ExtractEntities(ctx context.Context, text string) (types.Entities, error)

	// Generate produces a reply for prompt in the given role.
	Generate(ctx context.Context, prompt string, role Role, history []types.HistoryTurn) (string, error)
}

// Completer is a raw text completion backend. LLMOracle turns any Completer into an Oracle.
type Completer interface {
	// Complete sends a system instruction and a user message and returns the model text.
	// When jsonMode is set the backend should ask the model for a JSON object.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name identifies the backend in metrics and spans.
	Name() string

	// Model returns the configured model name.
	Model() string
}

// CompletionRequest is a single-shot completion call.
type CompletionRequest struct {
	System      string
	User        string
	History     []types.HistoryTurn
	JSONMode    bool
	Temperature float64
	MaxTokens   int
}
