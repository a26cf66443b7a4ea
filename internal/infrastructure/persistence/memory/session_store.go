// Package memory is the in-process session driver. States are lost on
// restart; use it for development and single-instance polling deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// SessionStore implements session.Repository over a map with optimistic locking.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]session.State
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store. A positive ttl hides states not saved within it.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]session.State),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get implements session.Repository.
func (s *SessionStore) Get(_ context.Context, telegramID int64) (session.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[telegramID]
	if !ok || s.expired(st) {
		return session.State{}, shared.NewDomainError("memory", "Get", shared.ErrNotFound, "session not found")
	}
	return st.Clone(), nil
}

// Save implements session.Repository.
func (s *SessionStore) Save(_ context.Context, st *session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	if cur, ok := s.sessions[st.TelegramID]; ok && !s.expired(cur) {
		stored = cur.Version
	}
	if stored != st.Version {
		return shared.NewDomainError("memory", "Save", shared.ErrVersionConflict, "session was saved concurrently")
	}

	st.Version++
	st.UpdatedAt = s.now()
	s.sessions[st.TelegramID] = st.Clone()
	return nil
}

// Delete implements session.Repository.
func (s *SessionStore) Delete(_ context.Context, telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, telegramID)
	return nil
}

// Close implements session.Repository.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[int64]session.State)
	return nil
}

// Len returns the number of stored states, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(st session.State) bool {
	return s.ttl > 0 && s.now().Sub(st.UpdatedAt) > s.ttl
}
