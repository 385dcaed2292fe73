package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/supportdesk/internal/oracle"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

type fakeGenerator struct {
	calls      atomic.Int32
	reply      string
	err        error
	lastPrompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, role oracle.Role, history []types.HistoryTurn) (string, error) {
	f.calls.Add(1)
	f.lastPrompt = prompt
	if role != oracle.RoleKnowledge {
		return "", errors.New("unexpected role")
	}
	return f.reply, f.err
}

func TestCorpusResponder_GeneratedAnswer(t *testing.T) {
	gen := &fakeGenerator{reply: "We are open 9 to 6 on weekdays."}
	r := NewCorpusResponder(DefaultCorpus(), gen, nil)

	ans, err := r.Answer(context.Background(), "What are your business hours?")
	require.NoError(t, err)

	assert.Equal(t, "We are open 9 to 6 on weekdays.", ans.Answer)
	assert.Equal(t, GeneratedConfidence, ans.Confidence)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "Business Hours", ans.Sources[0])
	assert.LessOrEqual(t, len(ans.Sources), 3)
	assert.Contains(t, gen.lastPrompt, "Monday-Friday 9:00 AM - 6:00 PM EST")
}

func TestCorpusResponder_NoMatch(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	r := NewCorpusResponder(DefaultCorpus(), gen, nil)

	ans, err := r.Answer(context.Background(), "quantum physics")
	require.NoError(t, err)
	assert.Equal(t, NoMatchAnswer, ans.Answer)
	assert.Equal(t, NoMatchConfidence, ans.Confidence)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestCorpusResponder_GenerationFailureFallsBackToDocument(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("oracle down")}
	r := NewCorpusResponder(DefaultCorpus(), gen, nil)

	ans, err := r.Answer(context.Background(), "How do I contact support by email?")
	require.NoError(t, err)
	assert.Equal(t, VerbatimConfidence, ans.Confidence)
	assert.Contains(t, ans.Answer, "support@cobcompany.com")
	assert.Equal(t, []string{"Contact Information"}, ans.Sources)
}

func TestCorpusResponder_NilGenerator(t *testing.T) {
	r := NewCorpusResponder(DefaultCorpus(), nil, nil)
	ans, err := r.Answer(context.Background(), "refund policy")
	require.NoError(t, err)
	assert.Equal(t, VerbatimConfidence, ans.Confidence)
	assert.Contains(t, ans.Answer, "30 days")
}

func TestScore_Weights(t *testing.T) {
	doc := Document{Title: "Hours", Content: "open hours", Tags: []string{"hours"}}
	assert.Equal(t, 2.0+1.0+1.5, score(doc, []string{"hours"}))
	assert.Equal(t, 0.0, score(doc, []string{"pricing"}))
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"business", "hours"}, queryTerms("What are your Business hours? hours!"))
	assert.Empty(t, queryTerms("is it"))
}

func TestParseCorpus(t *testing.T) {
	docs, err := ParseCorpus([]byte(`
documents:
  - title: Parking
    content: Free parking is available behind the building.
    tags: [parking, car]
`))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Parking", docs[0].Title)
	assert.Equal(t, []string{"parking", "car"}, docs[0].Tags)

	_, err = ParseCorpus([]byte("documents: []"))
	assert.Error(t, err)

	_, err = ParseCorpus([]byte("documents:\n  - title: Empty\n"))
	assert.Error(t, err)
}

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("documents:\n  - title: A\n    content: B\n"), 0o600))

	docs, err := LoadCorpus(path)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = LoadCorpus(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultCorpus_IsACopy(t *testing.T) {
	docs := DefaultCorpus()
	docs[0].Title = "changed"
	assert.NotEqual(t, "changed", DefaultCorpus()[0].Title)
}

type countingResponder struct {
	calls atomic.Int32
	ans   types.KnowledgeAnswer
}

func (c *countingResponder) Answer(ctx context.Context, query string) (*types.KnowledgeAnswer, error) {
	c.calls.Add(1)
	ans := c.ans
	return &ans, nil
}

func TestCachedResponder(t *testing.T) {
	inner := &countingResponder{ans: types.KnowledgeAnswer{Answer: "a", Confidence: GeneratedConfidence, Sources: []string{"x"}}}
	c := NewCachedResponder(inner, time.Minute)

	first, err := c.Answer(context.Background(), "Business  Hours")
	require.NoError(t, err)
	first.Sources[0] = "mutated"

	second, err := c.Answer(context.Background(), "business hours")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, []string{"x"}, second.Sources)

	c.Flush()
	_, err = c.Answer(context.Background(), "business hours")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedResponder_SkipsVerbatimAnswers(t *testing.T) {
	inner := &countingResponder{ans: types.KnowledgeAnswer{Answer: "doc", Confidence: VerbatimConfidence}}
	c := NewCachedResponder(inner, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := c.Answer(context.Background(), "hours")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), inner.calls.Load())
}
