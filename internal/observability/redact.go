package observability

import (
	"regexp"
	"strings"
)

// Redactor masks personal data and credentials before they are logged.
// Customers type names, emails and phone numbers into the chat, so every
// log line carrying user text goes through it.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
	name        string
}

// sensitiveFields are slot names whose values are always masked wholesale.
var sensitiveFields = map[string]string{
	"name":  "[REDACTED_NAME]",
	"email": "[REDACTED_EMAIL]",
	"phone": "[REDACTED_PHONE]",
}

// NewRedactor creates a redactor with the default patterns.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.addDefaultPatterns()
	return r
}

func (r *Redactor) addDefaultPatterns() {
	// Oracle credentials
	r.AddPattern(`sk-[a-zA-Z0-9\-_]{20,}`, "[REDACTED_API_KEY]", "openai_key")
	r.AddPattern(`AIza[a-zA-Z0-9\-_]{35}`, "[REDACTED_API_KEY]", "google_key")
	r.AddPattern(`Bearer\s+[a-zA-Z0-9\-_\.]+`, "Bearer [REDACTED]", "bearer_token")

	r.AddPattern(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[REDACTED_EMAIL]", "email")
	r.AddPattern(`\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`, "[REDACTED_CARD]", "credit_card")
	r.AddPattern(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`, "[REDACTED_SSN]", "ssn")
	r.AddPattern(`(\+?[0-9]{1,3}[-.\s]?)?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`, "[REDACTED_PHONE]", "phone")
	// Short local numbers such as 555-1234.
	r.AddPattern(`\b[0-9]{3}-[0-9]{4}\b`, "[REDACTED_PHONE]", "local_phone")
}

// AddPattern adds a custom redaction pattern. Invalid patterns are ignored.
func (r *Redactor) AddPattern(pattern, replacement, name string) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return
	}
	r.patterns = append(r.patterns, &redactPattern{
		regex:       regex,
		replacement: replacement,
		name:        name,
	})
}

// Redact applies all patterns to input.
func (r *Redactor) Redact(input string) string {
	result := input
	for _, p := range r.patterns {
		result = p.regex.ReplaceAllString(result, p.replacement)
	}
	return result
}

// RedactFields masks an extracted-entity map. Identity slots are replaced
// outright; other values go through the pattern set.
func (r *Redactor) RedactFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if replacement, ok := sensitiveFields[strings.ToLower(k)]; ok && v != "" {
			out[k] = replacement
			continue
		}
		out[k] = r.Redact(v)
	}
	return out
}
