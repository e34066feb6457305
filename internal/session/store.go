package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no session matches the requested id or filter
	ErrNotFound = errors.New("session not found")
	// ErrExists indicates a create collided with a stored session id
	ErrExists = errors.New("session already exists")
)

// Mutation is the full delta applied by Update. Status always replaces the
// stored value. Task and ConversationID replace only when non-nil. Step,
// when non-nil, is appended to history and increments StepCount; its Seq is
// assigned by the store.
type Mutation struct {
	Status         Status
	Task           *string
	ConversationID *string
	Step           *Step
}

// Store persists stateful sessions between calls. Update is the only
// mutation path; implementations apply each mutation atomically and
// serialize concurrent updates to the same id. Stateless sessions never
// reach a Store.
type Store interface {
	// Create persists a new session. Fails with ErrExists on id collision.
	Create(ctx context.Context, s *Session) error
	// Get returns the session with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// LatestActive returns the most recently updated session with an
	// active status, ignoring sessions stale past ttl. deviceID narrows
	// the search to one device when non-empty. Fails with ErrNotFound
	// when nothing qualifies.
	LatestActive(ctx context.Context, deviceID string, ttl time.Duration) (*Session, error)
	// Update applies mut to the stored session and returns the stored
	// result. Fails with ErrNotFound for unknown ids.
	Update(ctx context.Context, id string, mut Mutation) (*Session, error)
	// List returns all stored sessions, most recently updated first.
	List(ctx context.Context) ([]*Session, error)
	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// PruneExpired deletes sessions whose UpdatedAt is older than ttl and
	// returns how many were removed.
	PruneExpired(ctx context.Context, ttl time.Duration) (int, error)
	// Close releases any underlying resources.
	Close() error
}
