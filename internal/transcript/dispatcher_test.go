package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func record(session string, turn int) types.TurnRecord {
	return types.TurnRecord{
		SessionID:  session,
		UserID:     "u",
		TurnNumber: turn,
		UserText:   fmt.Sprintf("message %d", turn),
		BotText:    "reply",
		Intent:     types.IntentGreeting,
		Confidence: 0.9,
		TaskState:  types.TaskNone,
		Timestamp:  time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	d := NewDispatcher(DispatcherConfig{QueueSize: 16, Workers: 1}, nil, a, b)

	for i := 1; i <= 5; i++ {
		require.True(t, d.Emit(record("s1", i)))
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, a.Records(), 5)
	assert.Len(t, b.Records(), 5)
	// A single worker preserves order.
	for i, rec := range a.Records() {
		assert.Equal(t, i+1, rec.TurnNumber)
	}
}

// blockingSink holds every write until release is closed.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
	writes  atomic.Int32
	closed  atomic.Bool
}

func newBlockingSink() *blockingSink {
	return &blockingSink{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *blockingSink) Name() string { return "blocking" }

func (b *blockingSink) Write(ctx context.Context, rec types.TurnRecord) error {
	b.started <- struct{}{}
	<-b.release
	b.writes.Add(1)
	return nil
}

func (b *blockingSink) Close(ctx context.Context) error {
	b.closed.Store(true)
	return nil
}

func TestDispatcher_DropsWhenQueueIsFull(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(DispatcherConfig{QueueSize: 1, Workers: 1}, nil, sink)
	dropped := testutil.ToFloat64(metrics.TranscriptDropped)

	require.True(t, d.Emit(record("s", 1)))
	<-sink.started // the worker holds record 1

	require.True(t, d.Emit(record("s", 2)))
	assert.False(t, d.Emit(record("s", 3)))
	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.TranscriptDropped))

	close(sink.release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(2), sink.writes.Load())
	assert.True(t, sink.closed.Load())
}

func TestDispatcher_EmitAfterClose(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, nil, NewMemorySink())
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
	assert.False(t, d.Emit(record("s", 1)))
}

func TestDispatcher_NoSinks(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{}, nil)
	assert.False(t, d.Emit(record("s", 1)))
	require.NoError(t, d.Close(context.Background()))
}

type failingSink struct{ closeErr error }

func (f failingSink) Name() string { return "failing" }
func (f failingSink) Write(ctx context.Context, rec types.TurnRecord) error {
	return errors.New("disk full")
}
func (f failingSink) Close(ctx context.Context) error { return f.closeErr }

func TestDispatcher_SinkFailuresAreCountedNotFatal(t *testing.T) {
	mem := NewMemorySink()
	d := NewDispatcher(DispatcherConfig{Workers: 1}, nil, failingSink{closeErr: errors.New("close failed")}, mem)
	before := testutil.ToFloat64(metrics.TranscriptRecords.WithLabelValues("failing", "error"))

	require.True(t, d.Emit(record("s", 1)))
	err := d.Close(context.Background())
	assert.ErrorContains(t, err, "close failed")

	assert.Len(t, mem.Records(), 1)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TranscriptRecords.WithLabelValues("failing", "error")))
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(DispatcherConfig{Workers: 1}, nil, sink)
	require.True(t, d.Emit(record("s", 1)))
	<-sink.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(sink.release)
	// Let the worker finish so no goroutine outlives the test.
	require.Eventually(t, func() bool { return sink.writes.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, 5*time.Millisecond)
	d.wg.Wait()
}

func TestMemorySink_Session(t *testing.T) {
	m := NewMemorySink()
	require.NoError(t, m.Write(context.Background(), record("a", 1)))
	require.NoError(t, m.Write(context.Background(), record("b", 1)))
	require.NoError(t, m.Write(context.Background(), record("a", 2)))

	got := m.Session("a")
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[1].TurnNumber)
	assert.Empty(t, m.Session("missing"))
}
