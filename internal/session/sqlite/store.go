package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/AltairaLabs/guiagent-mcp/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	task            TEXT NOT NULL,
	mode            TEXT NOT NULL,
	device_id       TEXT NOT NULL,
	provider        TEXT NOT NULL,
	status          TEXT NOT NULL,
	step_count      INTEGER NOT NULL DEFAULT 0,
	history         TEXT NOT NULL DEFAULT '[]',
	conversation_id TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_status_updated ON sessions (status, updated_at);
`

const sessionColumns = `id, task, mode, device_id, provider, status, step_count, history, conversation_id, created_at, updated_at`

// Store implements session.Store on a single SQLite file, so stateful
// sessions survive process restarts. The pool is capped at one connection;
// SQLite is a single-writer engine and the cap turns lock contention into
// queueing instead of SQLITE_BUSY errors.
type Store struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Open creates or opens the session database at path, creating parent
// directories as needed.
func Open(path string, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply session schema: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

// Create persists a new session
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	history, err := marshalHistory(sess.History)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sess.ID).Scan(&exists)
	switch {
	case err == nil:
		return session.ErrExists
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check session %s: %w", sess.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Task, string(sess.Mode), sess.DeviceID, sess.Provider,
		string(sess.Status), sess.StepCount, history, sess.ConversationID,
		sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return tx.Commit()
}

// Get retrieves a session by id
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// LatestActive returns the most recently updated active session
func (s *Store) LatestActive(ctx context.Context, deviceID string, ttl time.Duration) (*session.Session, error) {
	cutoff := int64(0)
	if ttl > 0 {
		cutoff = s.clock.Now().Add(-ttl).UnixMilli()
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE status IN (?, ?)
		   AND (? = '' OR device_id = ?)
		   AND (? = 0 OR updated_at >= ?)
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		string(session.StatusRunning), string(session.StatusAwaitingReply),
		deviceID, deviceID, cutoff, cutoff,
	)
	return scanSession(row)
}

// Update applies mut inside one transaction, so an interrupted call either
// fully applies or leaves the prior record intact.
func (s *Store) Update(ctx context.Context, id string, mut session.Mutation) (*session.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, err
	}

	sess.Apply(mut, s.clock.Now())
	history, err := marshalHistory(sess.History)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions
		    SET task = ?, status = ?, step_count = ?, history = ?, conversation_id = ?, updated_at = ?
		  WHERE id = ?`,
		sess.Task, string(sess.Status), sess.StepCount, history, sess.ConversationID,
		sess.UpdatedAt.UnixMilli(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update session %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update %s: %w", id, err)
	}
	return sess, nil
}

// List returns all sessions, most recently updated first
func (s *Store) List(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Delete removes a session; unknown ids are a no-op
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// PruneExpired deletes sessions stale past ttl
func (s *Store) PruneExpired(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-ttl).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var (
		sess                 session.Session
		mode, status         string
		history              []byte
		createdMs, updatedMs int64
	)
	err := row.Scan(&sess.ID, &sess.Task, &mode, &sess.DeviceID, &sess.Provider,
		&status, &sess.StepCount, &history, &sess.ConversationID, &createdMs, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Mode = session.Mode(mode)
	sess.Status = session.Status(status)
	sess.CreatedAt = time.UnixMilli(createdMs).UTC()
	sess.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	if len(history) > 0 {
		if err := json.Unmarshal(history, &sess.History); err != nil {
			return nil, fmt.Errorf("decode history for %s: %w", sess.ID, err)
		}
	}
	return &sess, nil
}

func marshalHistory(steps []session.Step) ([]byte, error) {
	if steps == nil {
		return []byte("[]"), nil
	}
	out, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return out, nil
}
