package conversation

import "github.com/blueberrycongee/supportdesk/pkg/types"

var (
	errorSuggestions      = []string{"Try again", "Contact support"}
	escalationSuggestions = []string{"Contact support", "Business hours"}
	collectingSuggestions = []string{"Product Demo", "Technical Consultation", "Sales Meeting", "Support Session"}
	confirmSuggestions    = []string{"Yes, confirm", "No, cancel"}
)

var intentSuggestions = map[types.Intent][]string{
	types.IntentGreeting:        {"Book a product demo", "Business hours", "Contact information"},
	types.IntentGoodbye:         {"Start a new conversation"},
	types.IntentKnowledgeQuery:  {"Book an appointment", "Support levels", "Talk to a human agent"},
	types.IntentUnclassified:    {"Book an appointment", "Business hours", "Talk to a human agent"},
	types.IntentActionRequest:   {"Book a product demo", "Contact information"},
	types.IntentHumanEscalation: escalationSuggestions,
	types.IntentConfirmation:    {"Book another appointment", "Business hours"},
}

// suggestionsFor returns follow-up prompts for the outcome of a turn.
func suggestionsFor(intent types.Intent, state types.TaskState, escalated bool) []string {
	var src []string
	switch {
	case escalated:
		src = escalationSuggestions
	case state == types.TaskCollecting:
		src = collectingSuggestions
	case state == types.TaskAwaitingConfirmation:
		src = confirmSuggestions
	default:
		src = intentSuggestions[intent]
	}
	return append([]string(nil), src...)
}
