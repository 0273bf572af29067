package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/cropguard/internal/core/domain"
)

// SessionStore keeps sessions in process memory. Sessions never outlive the process.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create session", fmt.Errorf("session id is required"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create session", fmt.Errorf("session %s already exists", session.ID))
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id %s", id))
	}
	return session, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "delete session", fmt.Errorf("id %s", id))
	}
	delete(s.sessions, id)
	return nil
}

// SweepIdle removes sessions last touched before idleBefore and returns how many went.
func (s *SessionStore) SweepIdle(_ context.Context, idleBefore time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if session.TouchedAt().Before(idleBefore) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
