package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fazzatti/cacti/internal/model"
)

// MemoryStore is the default in-process session registry. Each session
// carries its own mutex so Mutate serializes writers per session without
// blocking unrelated sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	mu   sync.Mutex
	data *model.Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) Create(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.sessions[sess.ID]; dup {
		return &ConflictError{ID: sess.ID}
	}
	dup := sess.Clone()
	now := time.Now().UTC()
	if dup.CreatedAt.IsZero() {
		dup.CreatedAt = now
	}
	dup.UpdatedAt = now
	s.sessions[sess.ID] = &memorySession{data: dup}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.data.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*model.Session, error) {
	s.mu.RLock()
	entries := make([]*memorySession, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*model.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.data.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Mutate(ctx context.Context, id string, fn func(*model.Session) error) (*model.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := entry.data.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	entry.data = working
	return working.Clone(), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
