package assistant

import (
	"sync"
	"time"
)

// TurnRecord is one completed exchange in a session transcript.
type TurnRecord struct {
	UserMessage string
	Intent      string
	Reply       string
	Timestamp   time.Time
}

// Session is one user's transcript. Sessions exist only in memory for
// the lifetime of the process; nothing is persisted. The transcript is
// display history only: classification never reads it, so every turn is
// interpreted independently.
type Session struct {
	ID      string
	UserID  string
	Started time.Time
	Turns   []TurnRecord
}

// SessionStore keeps sessions in memory, keyed by session ID. Safe for
// concurrent use.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session with the given ID, creating it if absent.
func (s *SessionStore) Get(id, userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := &Session{ID: id, UserID: userID, Started: time.Now()}
	s.sessions[id] = sess
	return sess
}

// Append records a completed turn on the session.
func (s *SessionStore) Append(id string, rec TurnRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Turns = append(sess.Turns, rec)
	}
}

// History returns a copy of the session transcript, oldest first.
func (s *SessionStore) History(id string) []TurnRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]TurnRecord, len(sess.Turns))
	copy(out, sess.Turns)
	return out
}

// Delete removes a session and its transcript.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
