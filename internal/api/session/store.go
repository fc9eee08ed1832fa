package session

import (
	"sync"
	"time"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/dashboard"
	"github.com/cuongbtq/legacyjobs-dashboard/shared/sqldb"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session id.
const CookieName = "legacyjobs_session"

// Session is one authenticated operator. Handlers hold the session lock for
// the whole interaction, so navigation and queries never interleave.
type Session struct {
	sync.Mutex

	ID          string
	Credentials sqldb.Credentials
	Nav         *dashboard.Navigator

	// LastTotal and LastPageSize are what the last render saw; Next is bounded by them.
	LastTotal    int
	LastPageSize int

	expiresAt time.Time
}

// Store keeps sessions in process memory with an idle timeout.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

// NewStore creates a session store; ttl <= 0 disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session for creds starting on page 1.
func (s *Store) Create(creds sqldb.Credentials) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:          uuid.NewString(),
		Credentials: creds,
		Nav:         dashboard.NewNavigator(),
	}
	s.touch(sess)
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns a live session and extends its expiry.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(sess) {
		delete(s.sessions, id)
		return nil, false
	}

	s.touch(sess)
	return sess, true
}

// Delete forgets a session and returns it, if it existed.
func (s *Store) Delete(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	return sess, ok
}

// Sweep removes expired sessions and returns them so the caller can release
// their connections.
func (s *Store) Sweep() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*Session
	for id, sess := range s.sessions {
		if s.expired(sess) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	return expired
}

// InUse reports whether any live session still uses creds.
func (s *Store) InUse(creds sqldb.Credentials) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.Credentials == creds && !s.expired(sess) {
			return true
		}
	}
	return false
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) touch(sess *Session) {
	if s.ttl > 0 {
		sess.expiresAt = s.now().Add(s.ttl)
	}
}

func (s *Store) expired(sess *Session) bool {
	return s.ttl > 0 && !s.now().Before(sess.expiresAt)
}
