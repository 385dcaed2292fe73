package transcript

import (
	"context"
	"sync"

	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// MemorySink keeps records in process memory. Useful for development and tests.
type MemorySink struct {
	mu      sync.RWMutex
	records []types.TurnRecord
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Name() string { return "memory" }

func (m *MemorySink) Write(ctx context.Context, rec types.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Entities = rec.Entities.Clone()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemorySink) Close(ctx context.Context) error { return nil }

// Records returns a copy of every stored record in arrival order.
func (m *MemorySink) Records() []types.TurnRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.TurnRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Session returns the records of one session.
func (m *MemorySink) Session(sessionID string) []types.TurnRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.TurnRecord
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out
}
