package engine

import (
	"sync"
	"time"
)

// Session kinds.
const (
	SessionReplyMode = "reply"
	SessionPoke      = "poke"
)

// Poke wizard steps.
const (
	PokeStepRecipients = "recipients"
	PokeStepMessage    = "message"
)

// SessionTTL is the absolute inactivity timeout for interactive sessions.
const SessionTTL = 5 * time.Minute

// Session is the ephemeral per-user interactive state: either a buyer's
// reply-mode bound to an order, or an admin's poke wizard.
type Session struct {
	Kind         string
	Step         string
	OrderID      uint
	Recipients   []string
	lastActivity time.Time
}

// SessionStore keeps at most one session per user, in memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Get returns the user's session, dropping it if expired.
func (s *SessionStore) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	if s.now().Sub(sess.lastActivity) > SessionTTL {
		delete(s.sessions, userID)
		return nil
	}
	return sess
}

// Set replaces the user's session and stamps its activity time.
func (s *SessionStore) Set(userID int64, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.lastActivity = s.now()
	s.sessions[userID] = sess
}

// Touch refreshes the inactivity timer of an existing session.
func (s *SessionStore) Touch(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		sess.lastActivity = s.now()
	}
}

func (s *SessionStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
