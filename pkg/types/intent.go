// Package types defines the core data structures shared by the conversation pipeline,
// its collaborators and the transport layer.
package types //nolint:revive // package name is intentional

import "strings"

// Intent is the closed-set classification of what a user message is trying to do.
type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentGoodbye         Intent = "goodbye"
	IntentKnowledgeQuery  Intent = "knowledge_query"
	IntentActionRequest   Intent = "action_request"
	IntentHumanEscalation Intent = "human_escalation"
	IntentConfirmation    Intent = "confirmation"

	// IntentUnclassified marks oracle labels that map to no known intent.
	// The router answers it the same way as a knowledge query.
	IntentUnclassified Intent = "unclassified"
)

// Intents lists every routable intent in declaration order.
var Intents = []Intent{
	IntentGreeting,
	IntentGoodbye,
	IntentKnowledgeQuery,
	IntentActionRequest,
	IntentHumanEscalation,
	IntentConfirmation,
	IntentUnclassified,
}

// intentAliases maps oracle labels, including the legacy label set, onto the enumeration.
var intentAliases = map[string]Intent{
	"greeting":         IntentGreeting,
	"hello":            IntentGreeting,
	"goodbye":          IntentGoodbye,
	"farewell":         IntentGoodbye,
	"knowledge_query":  IntentKnowledgeQuery,
	"kb_query":         IntentKnowledgeQuery,
	"question":         IntentKnowledgeQuery,
	"action_request":   IntentActionRequest,
	"booking":          IntentActionRequest,
	"human_escalation": IntentHumanEscalation,
	"escalation":       IntentHumanEscalation,
	"confirmation":     IntentConfirmation,
}

// ParseIntent maps a raw oracle label onto the enumeration.
// Matching ignores case, surrounding whitespace, quotes and a trailing period.
// The second return value is false when the label is unknown, in which case
// IntentUnclassified is returned.
func ParseIntent(label string) (Intent, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.Trim(normalized, "\"'`.")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")

	if intent, ok := intentAliases[normalized]; ok {
		return intent, true
	}
	return IntentUnclassified, false
}

// Valid reports whether the intent is part of the enumeration.
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (i Intent) String() string {
	return string(i)
}
