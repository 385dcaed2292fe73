package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Snapshots are deep copies so callers
// can never mutate stored state outside Update.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Context
	locks    *keyedMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Context),
		locks:    newKeyedMutex(),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*Context, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	c := s.loadOrNew(sessionID, userID)
	if err := s.store(c); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrUnknownSession
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, sessionID, userID string, fn UpdateFunc) (*Context, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := s.loadOrNew(sessionID, userID).Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.SessionID = sessionID
	working.Version++
	working.UpdatedAt = time.Now().UTC()

	if err := s.store(working.Clone()); err != nil {
		return nil, err
	}
	return working, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Context, 0, len(s.sessions))
	for _, c := range s.sessions {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// loadOrNew must be called with the session's key lock held.
func (s *MemoryStore) loadOrNew(sessionID, userID string) *Context {
	s.mu.RLock()
	c, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return c
	}
	return NewContext(sessionID, userID)
}

func (s *MemoryStore) store(c *Context) error {
	s.mu.Lock()
	s.sessions[c.SessionID] = c
	s.mu.Unlock()
	return nil
}
