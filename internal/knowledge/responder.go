package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/blueberrycongee/supportdesk/internal/oracle"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// Answer confidences.
const (
	NoMatchConfidence   = 0.2
	GeneratedConfidence = 0.8
	VerbatimConfidence  = 0.6
)

// Scoring weights per query term.
const (
	titleWeight   = 2.0
	contentWeight = 1.0
	tagWeight     = 1.5
	maxContext    = 3
)

// NoMatchAnswer is returned when nothing in the corpus matches the query.
const NoMatchAnswer = "I don't have specific information about that. " +
	"Our team can help at support@cobcompany.com or 1-800-COB-HELP."

// Responder answers a free-text question.
type Responder interface {
	Answer(ctx context.Context, query string) (*types.KnowledgeAnswer, error)
}

// Generator phrases an answer from reference material.
type Generator interface {
	Generate(ctx context.Context, prompt string, role oracle.Role, history []types.HistoryTurn) (string, error)
}

var termPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopwords never contribute to a document score.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "can": true, "do": true, "does": true,
	"for": true, "how": true, "i": true, "in": true, "is": true, "it": true, "me": true,
	"my": true, "of": true, "on": true, "or": true, "the": true, "to": true, "what": true,
	"you": true, "your": true, "with": true, "about": true, "tell": true, "we": true,
}

// CorpusResponder scores documents against the query and asks the generator to
// phrase an answer from the best matches.
type CorpusResponder struct {
	docs      []Document
	generator Generator
	logger    *slog.Logger
}

// NewCorpusResponder creates a responder over docs. generator may be nil, in
// which case the best document is returned verbatim.
func NewCorpusResponder(docs []Document, generator Generator, logger *slog.Logger) *CorpusResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusResponder{docs: docs, generator: generator, logger: logger}
}

type scoredDoc struct {
	doc   Document
	score float64
}

// Answer implements Responder.
func (r *CorpusResponder) Answer(ctx context.Context, query string) (*types.KnowledgeAnswer, error) {
	matches := r.search(query)
	if len(matches) == 0 {
		return &types.KnowledgeAnswer{Answer: NoMatchAnswer, Confidence: NoMatchConfidence}, nil
	}

	top := matches
	if len(top) > maxContext {
		top = top[:maxContext]
	}
	sources := make([]string, len(top))
	for i, m := range top {
		sources[i] = m.doc.Title
	}

	if r.generator != nil {
		reply, err := r.generator.Generate(ctx, answerPrompt(query, top), oracle.RoleKnowledge, nil)
		if err == nil && strings.TrimSpace(reply) != "" {
			return &types.KnowledgeAnswer{
				Answer:     strings.TrimSpace(reply),
				Confidence: GeneratedConfidence,
				Sources:    sources,
			}, nil
		}
		if err != nil {
			r.logger.Warn("knowledge generation failed, answering verbatim", "error", err)
		}
	}

	return &types.KnowledgeAnswer{
		Answer:     top[0].doc.Content,
		Confidence: VerbatimConfidence,
		Sources:    sources[:1],
	}, nil
}

func (r *CorpusResponder) search(query string) []scoredDoc {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	var matches []scoredDoc
	for _, doc := range r.docs {
		if s := score(doc, terms); s > 0 {
			matches = append(matches, scoredDoc{doc: doc, score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	return matches
}

func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, t := range termPattern.FindAllString(strings.ToLower(query), -1) {
		if len(t) < 2 || stopwords[t] || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

func score(doc Document, terms []string) float64 {
	title := strings.ToLower(doc.Title)
	content := strings.ToLower(doc.Content)

	var s float64
	for _, term := range terms {
		if strings.Contains(title, term) {
			s += titleWeight
		}
		if strings.Contains(content, term) {
			s += contentWeight
		}
		for _, tag := range doc.Tags {
			if strings.EqualFold(tag, term) {
				s += tagWeight
			}
		}
	}
	return s
}

func answerPrompt(query string, docs []scoredDoc) string {
	var b strings.Builder
	b.WriteString("Reference information:\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "- %s: %s\n", d.doc.Title, d.doc.Content)
	}
	fmt.Fprintf(&b, "\nCustomer question: %s", query)
	return b.String()
}
