// Package conversation keeps per-sender chat history for the AI responder.
package conversation

import (
	"sync"
	"time"
)

// DefaultMaxTurns bounds a session's history. Twenty exchanges is enough
// context for short chat replies.
const DefaultMaxTurns = 40

// Role tags a turn with who produced it.
type Role string

// Turn roles.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// Session is the conversation with one sender.
type Session struct {
	// exchange serializes whole request/response round-trips.
	exchange sync.Mutex

	mu       sync.RWMutex
	turns    []Turn
	updated  time.Time
	maxTurns int
}

// Begin takes the session's exchange lock. Hold it across reading the
// history, calling the model and appending the result so that two commands
// from the same sender cannot interleave their turns.
func (s *Session) Begin() (release func()) {
	s.exchange.Lock()
	return s.exchange.Unlock
}

// History returns a copy of the turns in order.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Append adds turns to the end of the history, then trims from the front.
func (s *Session) Append(turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, t := range turns {
		if t.At.IsZero() {
			t.At = now
		}
		s.turns = append(s.turns, t)
	}
	s.updated = now
	s.trim()
}

// trim drops the oldest turns until the history fits. Turns go in pairs and
// leading model turns are dropped too, so history always opens with the user.
func (s *Session) trim() {
	if s.maxTurns <= 0 {
		return
	}
	drop := 0
	for len(s.turns)-drop > s.maxTurns {
		drop += 2
	}
	for drop < len(s.turns) && s.turns[drop].Role != RoleUser {
		drop++
	}
	if drop > len(s.turns) {
		drop = len(s.turns)
	}
	if drop > 0 {
		s.turns = append([]Turn(nil), s.turns[drop:]...)
	}
}

// Store holds one session per sender for the life of the process.
type Store struct {
	sessions map[string]*Session
	maxTurns int
	mu       sync.RWMutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxTurns caps each session's history. Zero or less disables the cap.
// Odd caps are rounded up, since turns are kept in user/model pairs.
func WithMaxTurns(n int) StoreOption {
	return func(s *Store) {
		if n > 0 && n%2 == 1 {
			n++
		}
		s.maxTurns = n
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		maxTurns: DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the sender's session, creating an empty one on first use.
func (s *Store) GetOrCreate(sender string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[sender]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok = s.sessions[sender]; ok {
		return sess
	}
	sess = &Session{
		updated:  time.Now(),
		maxTurns: s.maxTurns,
	}
	s.sessions[sender] = sess
	return sess
}

// AppendTurn records one turn for sender.
func (s *Store) AppendTurn(sender string, role Role, text string) {
	s.GetOrCreate(sender).Append(Turn{Role: role, Text: text})
}

// History returns a copy of sender's turns, or nil if the sender has no session.
func (s *Store) History(sender string) []Turn {
	s.mu.RLock()
	sess, ok := s.sessions[sender]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return sess.History()
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats summarizes the store for health reporting.
type Stats struct {
	Sessions int
	Turns    int
}

// Stats returns session and total turn counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Sessions: len(s.sessions)}
	for _, sess := range s.sessions {
		st.Turns += sess.Len()
	}
	return st
}
