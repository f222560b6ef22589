package imageloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for a session id the store does not know.
var ErrSessionNotFound = errors.New("session not found")

// MemorySessionStore is an in-process SessionStore. Sessions live until
// Delete is called or the store is dropped.
type MemorySessionStore struct {
	sessions map[string][]Message
	mu       sync.RWMutex
}

// Ensure MemorySessionStore implements SessionStore.
var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string][]Message),
	}
}

// Create registers a new session under a random UUID.
func (s *MemorySessionStore) Create(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = make([]Message, 0)
	return id, nil
}

// Append adds messages to the end of a session.
func (s *MemorySessionStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.sessions[sessionID] = append(existing, msgs...)
	return nil
}

// Messages returns a copy of a session's messages in append order.
func (s *MemorySessionStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	msgs := make([]Message, len(existing))
	copy(msgs, existing)
	return msgs, nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *MemorySessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Len returns the number of sessions held.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
