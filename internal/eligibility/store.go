package eligibility

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weighright/portal/pkg/types"
)

// StoreOption configures a SessionStore
type StoreOption func(*SessionStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(s *SessionStore) { s.now = now }
}

// WithVerdictHook is called whenever a session's verdict becomes known
func WithVerdictHook(fn func(eligible bool)) StoreOption {
	return func(s *SessionStore) { s.onVerdict = fn }
}

// SessionStore keeps wizard sessions in memory and expires idle ones
type SessionStore struct {
	mu        sync.Mutex
	graph     *Graph
	sessions  map[string]*Session
	ttl       time.Duration
	now       func() time.Time
	onVerdict func(bool)
}

// NewSessionStore creates a store for sessions walking graph
func NewSessionStore(graph *Graph, ttl time.Duration, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		graph:    graph,
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session
func (s *SessionStore) Create() *SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := NewSession(uuid.New().String(), s.graph, s.now())
	s.sessions[sess.ID] = sess
	return sess.View()
}

// Get returns the current view of a session
func (s *SessionStore) Get(id string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return sess.View(), nil
}

// Update runs fn against the session under the store lock. The returned view
// reflects the session after fn, whether or not fn failed.
func (s *SessionStore) Update(id string, fn func(*Session) error) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	before := sess.Verdict
	err = fn(sess)
	sess.UpdatedAt = s.now()

	if s.onVerdict != nil && sess.Verdict != before && sess.Verdict != VerdictUnknown {
		s.onVerdict(sess.Verdict == VerdictEligible)
	}
	return sess.View(), err
}

// Delete drops a session
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Sweep removes idle sessions and returns how many were dropped
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) lookup(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "wizard session not found")
	}
	if s.expired(sess, s.now()) {
		delete(s.sessions, id)
		return nil, types.NewNotFoundError(types.ErrCodeSessionExpired, "wizard session expired")
	}
	return sess, nil
}

func (s *SessionStore) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}
