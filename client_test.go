package supportdesk

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/supportdesk/internal/config"
	"github.com/blueberrycongee/supportdesk/internal/conversation"
	"github.com/blueberrycongee/supportdesk/internal/session"
	"github.com/blueberrycongee/supportdesk/internal/transcript"
	supporterrors "github.com/blueberrycongee/supportdesk/pkg/errors"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithLogger(discardLogger()),
		WithReferenceIDGenerator(func() string { return "ABC12345" }),
	}
	client, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func TestClient_GreetingAndKnowledge(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	res := client.ProcessTurn(ctx, "", "Hello", "")
	require.NotNil(t, res)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, types.IntentGreeting, res.Intent)
	assert.False(t, res.RequiresEscalation)
	assert.NotEmpty(t, res.Suggestions)

	res = client.ProcessTurn(ctx, res.SessionID, "What are your business hours?", "")
	assert.Equal(t, types.IntentKnowledgeQuery, res.Intent)
	assert.Contains(t, res.Reply, "Monday-Friday")
	assert.False(t, res.RequiresEscalation)
	assert.Equal(t, types.TaskNone, res.TaskState)
}

func TestClient_BookingFlow(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	res := client.ProcessTurn(ctx, "", "I'd like to book a product demo", "u-1")
	sid := res.SessionID
	assert.Equal(t, types.IntentActionRequest, res.Intent)
	assert.Equal(t, types.TaskCollecting, res.TaskState)

	res = client.ProcessTurn(ctx, sid, "My name is Jane Doe, jane@example.com, 555-123-4567", "u-1")
	assert.Equal(t, types.TaskCollecting, res.TaskState)

	res = client.ProcessTurn(ctx, sid, "next Tuesday at 3pm", "u-1")
	require.Equal(t, types.TaskAwaitingConfirmation, res.TaskState)
	assert.Contains(t, res.Reply, "ABC12345")

	res = client.ProcessTurn(ctx, sid, "yes", "u-1")
	assert.Equal(t, types.TaskDone, res.TaskState)
	assert.Equal(t, "ABC12345", res.ReferenceID)
	assert.False(t, res.RequiresEscalation)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "ABC12345", res.Booking.ReferenceID)
	assert.Equal(t, "Jane Doe", res.Booking.Details.Get(types.SlotName))
	assert.Equal(t, "jane@example.com", res.Booking.Details.Get(types.SlotEmail))

	sess, err := client.Session(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.UserID)
	assert.Equal(t, 4, sess.TurnCount)
	assert.Equal(t, session.ActionNone, sess.CurrentAction)
}

func TestClient_CourtesyWordsDoNotDropSlotAnswers(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	res := client.ProcessTurn(ctx, "s-thanks", "I'd like to book a Product Demo, my email is a@b.com", "")
	require.Equal(t, types.TaskCollecting, res.TaskState)

	res = client.ProcessTurn(ctx, "s-thanks", "Thanks! My phone is 555 123 4567", "")
	assert.Equal(t, types.IntentConfirmation, res.Intent)
	assert.Equal(t, types.TaskCollecting, res.TaskState)
	assert.False(t, res.RequiresEscalation)
	assert.Contains(t, res.Reply, "Name")
	assert.NotContains(t, res.Reply, "Phone")

	sess, err := client.Session(ctx, "s-thanks")
	require.NoError(t, err)
	assert.Equal(t, "555 123 4567", sess.CollectedInfo.Get(types.SlotPhone))
	assert.Equal(t, "a@b.com", sess.CollectedInfo.Get(types.SlotEmail))
	assert.Equal(t, session.ActionScheduleAppointment, sess.CurrentAction)

	res = client.ProcessTurn(ctx, "s-thanks", "I'm personally free next Monday", "")
	assert.False(t, res.RequiresEscalation)
	assert.Equal(t, types.TaskCollecting, res.TaskState)

	sess, err = client.Session(ctx, "s-thanks")
	require.NoError(t, err)
	assert.Equal(t, "next Monday", sess.CollectedInfo.Get(types.SlotDate))
}

func TestClient_SessionAdmin(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	res := client.ProcessTurn(ctx, "s-admin", "Hello", "")
	require.Equal(t, "s-admin", res.SessionID)

	list, err := client.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "s-admin", list[0].SessionID)
	assert.Equal(t, 1, list[0].TurnCount)

	deleted, err := client.ClearSession(ctx, "s-admin")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = client.Session(ctx, "s-admin")
	assert.True(t, supporterrors.IsType(err, supporterrors.TypeUnknownSession))

	deleted, err = client.ClearSession(ctx, "s-admin")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestClient_TranscriptsAreFlushedOnClose(t *testing.T) {
	sink := transcript.NewMemorySink()
	client, err := New(
		WithLogger(discardLogger()),
		WithSink(sink),
		WithDispatcherConfig(transcript.DispatcherConfig{Workers: 1}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	res := client.ProcessTurn(ctx, "", "Hello", "")
	client.ProcessTurn(ctx, res.SessionID, "Goodbye", "")

	require.NoError(t, client.Close(ctx))
	records := sink.Session(res.SessionID)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].TurnNumber)
	assert.Equal(t, "Hello", records[0].UserText)
	assert.Equal(t, 2, records[1].TurnNumber)
}

func TestClient_Close(t *testing.T) {
	client, err := New(WithLogger(discardLogger()))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, client.Ready(ctx))
	require.NoError(t, client.Close(ctx))
	require.NoError(t, client.Close(ctx))

	assert.ErrorIs(t, client.Ready(ctx), ErrClosed)
	_, err = client.Session(ctx, "x")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = client.Sessions(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClient_ReadyPingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	store := session.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	client := newTestClient(t, WithStore(store))

	require.NoError(t, client.Ready(context.Background()))
	mr.Close()
	assert.Error(t, client.Ready(context.Background()))
}

func TestClient_Policy(t *testing.T) {
	_, err := New(WithLogger(discardLogger()), WithPolicy(Policy{ConfidenceThreshold: 0.4, KnowledgeThreshold: 0.5}))
	require.Error(t, err)

	client := newTestClient(t)
	assert.Equal(t, DefaultPolicy(), client.Policy())

	next := DefaultPolicy()
	next.StreakLimit = 5
	require.NoError(t, client.SetPolicy(next))
	assert.Equal(t, 5, client.Policy().StreakLimit)

	next.KnowledgeThreshold = 3
	assert.Error(t, client.SetPolicy(next))
	assert.Equal(t, 0.5, client.Policy().KnowledgeThreshold)
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.PolicyConfig{ConfidenceThreshold: 0.3, KnowledgeThreshold: 0.6, StreakLimit: 4})
	assert.Equal(t, 0.3, p.ConfidenceThreshold)
	assert.Equal(t, 0.6, p.KnowledgeThreshold)
	assert.Equal(t, 4, p.StreakLimit)
	assert.Equal(t, conversation.DefaultEscalationKeywords, p.Keywords)

	p = PolicyFromConfig(config.PolicyConfig{StreakLimit: 1, Keywords: []string{"lawyer"}})
	assert.Equal(t, []string{"lawyer"}, p.Keywords)
}

func TestNewFromConfig(t *testing.T) {
	corpus := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(corpus, []byte(`
documents:
  - title: Parking
    content: Visitor parking is free in the north garage.
    tags: [parking, garage]
`), 0o644))

	cfg := config.DefaultConfig()
	cfg.Knowledge.CorpusPath = corpus
	cfg.Transcript.Sinks = []string{"memory"}
	cfg.Policy.StreakLimit = 3

	client, err := NewFromConfig(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	assert.Equal(t, 3, client.Policy().StreakLimit)
	res := client.ProcessTurn(context.Background(), "", "Where can visitors find parking?", "")
	assert.Contains(t, res.Reply, "north garage")
}

func TestNewFromConfig_Invalid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Oracle.Backend = "telepathy"
	_, err := NewFromConfig(context.Background(), cfg, discardLogger())
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Knowledge.CorpusPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewFromConfig(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}

func TestClient_ConcurrentSessions(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan *TurnResult, 8)
	for i := 0; i < 8; i++ {
		go func() { done <- client.ProcessTurn(ctx, "", "Hello", "") }()
	}
	seen := map[string]bool{}
	for i := 0; i < 8; i++ {
		res := <-done
		assert.False(t, seen[res.SessionID])
		seen[res.SessionID] = true
	}
	list, err := client.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 8)
}
