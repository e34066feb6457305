package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AltairaLabs/guiagent-mcp/internal/session"
)

// Store implements session.Store with in-memory maps. It backs tests and
// ephemeral deployments; nothing survives a process restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	clock    clockwork.Clock
}

// NewStore creates a new in-memory session store
func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		sessions: make(map[string]*session.Session),
		clock:    clock,
	}
}

// Create persists a new session
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return session.ErrExists
	}
	// Store a copy to prevent external modifications
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Get retrieves a session by id
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, session.ErrNotFound
	}
	return sess.Clone(), nil
}

// LatestActive returns the most recently updated active session
func (s *Store) LatestActive(ctx context.Context, deviceID string, ttl time.Duration) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Time{}
	if ttl > 0 {
		cutoff = s.clock.Now().Add(-ttl)
	}

	var latest *session.Session
	for _, sess := range s.sessions {
		if !sess.Status.Active() {
			continue
		}
		if deviceID != "" && sess.DeviceID != deviceID {
			continue
		}
		if !cutoff.IsZero() && sess.UpdatedAt.Before(cutoff) {
			continue
		}
		if latest == nil || sess.UpdatedAt.After(latest.UpdatedAt) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, session.ErrNotFound
	}
	return latest.Clone(), nil
}

// Update applies mut to the stored session and returns the result
func (s *Store) Update(ctx context.Context, id string, mut session.Mutation) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return nil, session.ErrNotFound
	}
	sess.Apply(mut, s.clock.Now())
	return sess.Clone(), nil
}

// List returns all sessions, most recently updated first
func (s *Store) List(ctx context.Context) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a session; unknown ids are a no-op
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// PruneExpired deletes sessions stale past ttl
func (s *Store) PruneExpired(ctx context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close() error {
	return nil
}
