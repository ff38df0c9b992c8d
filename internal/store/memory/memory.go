// Package memory keeps sessions in process memory, suitable for tests and
// throwaway runs.
package memory

import (
	"context"
	"sync"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

var _ store.Backend = (*Backend)(nil)

// Backend implements store.Backend with a map. The mutex only keeps the map
// itself consistent; it does not serialize read-modify-write cycles.
type Backend struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{sessions: make(map[string]chat.Session)}
}

// Load returns a copy of the stored session.
func (b *Backend) Load(_ context.Context, id string) (*chat.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	session, ok := b.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := session.Clone()
	return &copied, nil
}

// Save stores a copy of session, replacing any previous record.
func (b *Backend) Save(_ context.Context, session *chat.Session) error {
	b.mu.Lock()
	b.sessions[session.ID] = session.Clone()
	b.mu.Unlock()
	return nil
}

// Delete drops a session.
func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(b.sessions, id)
	return nil
}

// List returns a summary per stored session.
func (b *Backend) List(_ context.Context) ([]chat.Summary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	summaries := make([]chat.Summary, 0, len(b.sessions))
	for _, session := range b.sessions {
		summaries = append(summaries, session.Summary())
	}
	return summaries, nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}
