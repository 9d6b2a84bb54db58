package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// SessionStore keeps session state in process memory. Idle sessions are
// dropped by EvictIdle, which the janitor in cmd/farum-api calls.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.SessionContext
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.SessionContext),
	}
}

func (s *SessionStore) PutSession(_ context.Context, session *domain.SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id domain.SessionID) (*domain.SessionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *SessionStore) DeleteSession(_ context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// EvictIdle removes sessions whose last message is older than cutoff and
// returns how many were removed.
func (s *SessionStore) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if sess.LastMessageAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len reports how many sessions are live.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
