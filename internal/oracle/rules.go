package oracle

import (
	"context"
	"regexp"
	"strings"

	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// RulesBackendName identifies the deterministic backend.
const RulesBackendName = "rules"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\(?\d{1,4}\)?[\d\-\s.]{5,}\d`)
	namePattern  = regexp.MustCompile(`(?:[Mm]y name is|I am|I'm|[Tt]his is|[Nn]ame:)\s+([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+){0,2})`)
	timePattern  = regexp.MustCompile(`(?i)\b(\d{1,2}(?::\d{2})?\s?(?:am|pm)|\d{1,2}:\d{2}|noon|midday|morning|afternoon|evening)\b`)
	datePattern  = regexp.MustCompile(`(?i)\b((?:next\s+|this\s+)?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)|today|tomorrow|next week|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?)\b`)
	wordPattern  = regexp.MustCompile(`[a-z']+`)
)

// serviceAliases maps phrases to the canonical appointment types, most specific first.
var serviceAliases = []struct {
	phrase  string
	service string
}{
	{"product demo", "Product Demo"},
	{"technical consultation", "Technical Consultation"},
	{"sales meeting", "Sales Meeting"},
	{"support session", "Support Session"},
	{"demo", "Product Demo"},
	{"consultation", "Technical Consultation"},
	{"sales", "Sales Meeting"},
	{"troubleshooting", "Support Session"},
}

var (
	greetingWords     = []string{"hello", "hi", "hey", "greetings", "morning"}
	goodbyeWords      = []string{"bye", "goodbye", "farewell", "thanks", "thank"}
	affirmativeWords  = []string{"yes", "yep", "correct", "confirm", "ok", "okay", "sure", "right", "good"}
	schedulingWords   = []string{"appointment", "schedule", "book", "booking", "meeting", "demo", "consultation", "reschedule"}
	escalationPhrases = []string{"human", "agent", "representative", "manager", "supervisor", "real person", "speak to", "talk to someone", "frustrated", "angry"}
	questionWords     = []string{"what", "when", "where", "how", "why", "which", "who", "do", "does", "can", "is", "are"}
)

// Rules is a deterministic keyword oracle. It needs no network access and is used
// when no model backend is configured, and as a predictable stand-in in tests.
type Rules struct{}

// NewRules creates a rules oracle.
func NewRules() *Rules {
	return &Rules{}
}

// Backend returns the backend name.
func (r *Rules) Backend() string { return RulesBackendName }

// Model returns an empty model name.
func (r *Rules) Model() string { return "" }

func (r *Rules) Classify(ctx context.Context, text string, hint Hint) (*types.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, supporterrors.NewOracleUnavailableError("classify", err)
	}
	lower := strings.ToLower(text)
	words := wordPattern.FindAllString(lower, -1)
	entities := extractRules(text)

	classification := func(intent types.Intent, confidence float64) *types.Classification {
		return &types.Classification{Intent: string(intent), Confidence: confidence, Entities: entities}
	}

	switch {
	case containsAnyPhrase(lower, escalationPhrases):
		return classification(types.IntentHumanEscalation, 0.9), nil
	case hint.AwaitingConfirmation && containsAnyWord(words, affirmativeWords):
		return classification(types.IntentConfirmation, 0.9), nil
	case containsAnyWord(words, schedulingWords):
		return classification(types.IntentActionRequest, 0.85), nil
	case hint.CurrentAction != "" && len(entities) > 0:
		// Slot answers often open with a courtesy word ("Thanks! my phone is ...").
		return classification(types.IntentConfirmation, 0.7), nil
	case len(words) <= 4 && containsAnyWord(words, greetingWords):
		return classification(types.IntentGreeting, 0.9), nil
	case len(words) <= 6 && containsAnyWord(words, goodbyeWords):
		return classification(types.IntentGoodbye, 0.85), nil
	case len(words) <= 3 && containsAnyWord(words, affirmativeWords):
		return classification(types.IntentConfirmation, 0.75), nil
	case strings.Contains(text, "?") || (len(words) > 0 && containsAnyWord(words[:1], questionWords)):
		return classification(types.IntentKnowledgeQuery, 0.7), nil
	default:
		return classification(types.IntentKnowledgeQuery, 0.5), nil
	}
}

func (r *Rules) ExtractEntities(ctx context.Context, text string) (types.Entities, error) {
	if err := ctx.Err(); err != nil {
		return nil, supporterrors.NewOracleUnavailableError("extract_entities", err)
	}
	return extractRules(text), nil
}

// cannedReplies are returned by Generate for the roles the rules backend can voice.
var cannedReplies = map[Role]string{
	RoleGreeting: "Hello! Welcome to COB Company Customer Support. I can answer questions about our " +
		"services, help you book an appointment, or connect you with our team. How can I help you today?",
	RoleGoodbye: "Thank you for contacting COB Company! If you need further assistance, reach us at " +
		"support@cobcompany.com or 1-800-COB-HELP. Have a great day!",
	RoleEscalation: "I'll connect you with one of our human agents who can provide more specialized " +
		"assistance. You can also reach us directly at support@cobcompany.com or 1-800-COB-HELP.",
	RoleFallback: "I want to make sure I understand how to help you. I can answer questions about COB " +
		"Company, schedule appointments, or connect you with a human agent. Could you tell me a bit more?",
}

// Generate returns a fixed reply per role. Knowledge answers are not supported so
// callers fall back to quoting their reference material.
func (r *Rules) Generate(ctx context.Context, prompt string, role Role, history []types.HistoryTurn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", supporterrors.NewOracleUnavailableError("generate", err)
	}
	reply, ok := cannedReplies[role]
	if !ok {
		return "", supporterrors.NewMalformedOracleOutputError("generate", "rules backend cannot generate "+string(role)+" replies")
	}
	return reply, nil
}

func extractRules(text string) types.Entities {
	out := types.Entities{}
	email := emailPattern.FindString(text)
	if email != "" {
		out[types.SlotEmail] = email
	}
	withoutEmail := strings.Replace(text, email, " ", 1)
	if email == "" {
		withoutEmail = text
	}
	if m := namePattern.FindStringSubmatch(text); m != nil {
		out[types.SlotName] = strings.TrimSpace(m[1])
	}
	if d := datePattern.FindString(withoutEmail); d != "" {
		out[types.SlotDate] = strings.TrimSpace(d)
	}
	if t := timePattern.FindString(withoutEmail); t != "" {
		out[types.SlotTime] = strings.TrimSpace(t)
	}
	// Dates such as 2024-05-01 look like phone numbers; strip them first.
	phoneSource := datePattern.ReplaceAllString(withoutEmail, " ")
	phoneSource = timePattern.ReplaceAllString(phoneSource, " ")
	if p := phonePattern.FindString(phoneSource); p != "" && countDigits(p) >= 7 {
		out[types.SlotPhone] = strings.TrimSpace(p)
	}
	lower := strings.ToLower(text)
	for _, alias := range serviceAliases {
		if strings.Contains(lower, alias.phrase) {
			out[types.SlotServiceType] = alias.service
			break
		}
	}
	return out
}

func containsAnyWord(words, candidates []string) bool {
	for _, w := range words {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}

func containsAnyPhrase(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
