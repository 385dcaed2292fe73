package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// FallbackConfidence is reported when the oracle could not classify a message.
const FallbackConfidence = 0.3

// DefaultEscalationKeywords force a hand-off whenever they appear in a message.
var DefaultEscalationKeywords = []string{
	"human", "agent", "representative", "manager", "supervisor",
	"person", "frustrated", "angry", "speak to", "talk to someone",
}

// Policy holds the escalation thresholds. It is immutable once installed; use
// Pipeline.SetPolicy to swap it.
type Policy struct {
	// ConfidenceThreshold escalates any turn classified below it.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	// KnowledgeThreshold marks a knowledge answer as low value.
	KnowledgeThreshold float64 `yaml:"knowledge_threshold" json:"knowledge_threshold"`
	// StreakLimit is the number of consecutive low-value answers that escalates.
	StreakLimit int `yaml:"streak_limit" json:"streak_limit"`
	// Keywords are matched case-insensitively on whole words, so "person"
	// does not match "personally" and "speak to" does not match "speak tomorrow".
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold: 0.4,
		KnowledgeThreshold:  0.5,
		StreakLimit:         2,
		Keywords:            append([]string(nil), DefaultEscalationKeywords...),
	}
}

// Validate checks that thresholds are in range.
func (p Policy) Validate() error {
	var errs []error
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence_threshold must be within [0,1], got %v", p.ConfidenceThreshold))
	}
	if p.KnowledgeThreshold < 0 || p.KnowledgeThreshold > 1 {
		errs = append(errs, fmt.Errorf("knowledge_threshold must be within [0,1], got %v", p.KnowledgeThreshold))
	}
	if p.StreakLimit < 1 {
		errs = append(errs, fmt.Errorf("streak_limit must be at least 1, got %d", p.StreakLimit))
	}
	return errors.Join(errs...)
}

func (p Policy) clone() Policy {
	p.Keywords = append([]string(nil), p.Keywords...)
	return p
}

// MatchKeyword returns the first escalation keyword contained in text.
func (p Policy) MatchKeyword(text string) (string, bool) {
	padded := " " + wordsOf(text) + " "
	for _, kw := range p.Keywords {
		words := wordsOf(kw)
		if words != "" && strings.Contains(padded, " "+words+" ") {
			return strings.ToLower(strings.TrimSpace(kw)), true
		}
	}
	return "", false
}

// wordsOf lower-cases text and joins its words with single spaces.
func wordsOf(text string) string {
	return strings.Join(wordPattern.FindAllString(strings.ToLower(text), -1), " ")
}

// forcedEscalation decides whether a turn escalates before routing. Streak
// escalation happens later because it depends on the knowledge answer.
func (p Policy) forcedEscalation(text string, cls classified) types.EscalationReason {
	if _, ok := p.MatchKeyword(text); ok {
		return types.EscalationKeyword
	}
	if cls.intent == types.IntentHumanEscalation {
		return types.EscalationRequested
	}
	if cls.confidence < p.ConfidenceThreshold {
		if cls.degraded {
			return types.EscalationOracleUnavailable
		}
		return types.EscalationLowConfidence
	}
	return types.EscalationNone
}
