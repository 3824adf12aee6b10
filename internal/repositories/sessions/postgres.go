// Package sessions keeps the one-session-per-user record in Postgres. It is
// the alternative to session.RedisStore when Redis is not the session
// backend.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/internal/dbx"
	"github.com/MrEthical07/phonebook/session"
)

// PostgresStore implements phonebook.SessionStore. Expired rows are treated
// as absent and removed by DeleteExpired.
type PostgresStore struct {
	db  dbx.DBTX
	now func() time.Time
}

var _ phonebook.SessionStore = (*PostgresStore)(nil)

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Put creates or replaces the session of sess.UserID in one statement.
func (s *PostgresStore) Put(ctx context.Context, sess *session.Session) error {
	query := `
		INSERT INTO sessions (user_id, access_digest, refresh_digest, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET access_digest = EXCLUDED.access_digest,
		    refresh_digest = EXCLUDED.refresh_digest,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.UserID, sess.AccessDigest[:], sess.RefreshDigest[:],
		time.Unix(sess.CreatedAt, 0).UTC(), time.Unix(sess.ExpiresAt, 0).UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*session.Session, error) {
	query := `
		SELECT access_digest, refresh_digest, created_at, expires_at
		FROM sessions
		WHERE user_id = $1 AND expires_at > $2
	`
	var (
		access, refresh      []byte
		createdAt, expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, userID, s.now().UTC()).Scan(&access, &refresh, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsCode(err, dbx.CodeInvalidTextFormat) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	if len(access) != 32 || len(refresh) != 32 {
		return nil, session.ErrCorrupt
	}

	sess := &session.Session{
		UserID:    userID,
		CreatedAt: createdAt.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}
	copy(sess.AccessDigest[:], access)
	copy(sess.RefreshDigest[:], refresh)
	return sess, nil
}

// Delete removes the row of userID. An expired row is removed too but
// reported as session.ErrNotFound.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM sessions WHERE user_id = $1 RETURNING expires_at`

	var expiresAt time.Time
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) || dbx.IsCode(err, dbx.CodeInvalidTextFormat) {
			return session.ErrNotFound
		}
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	if !expiresAt.After(s.now()) {
		return session.ErrNotFound
	}
	return nil
}

// Rotate swaps in next with a conditional UPDATE on the stored refresh
// digest. When no row changes, a follow-up read tells a superseded token
// from a missing session.
func (s *PostgresStore) Rotate(ctx context.Context, userID string, presented [32]byte, next *session.Session) error {
	if next == nil || next.UserID != userID {
		return errors.New("rotation target does not match user")
	}

	query := `
		UPDATE sessions
		SET access_digest = $3, refresh_digest = $4, created_at = $5, expires_at = $6
		WHERE user_id = $1 AND refresh_digest = $2 AND expires_at > $7
	`
	res, err := s.db.ExecContext(ctx, query,
		userID, presented[:], next.AccessDigest[:], next.RefreshDigest[:],
		time.Unix(next.CreatedAt, 0).UTC(), time.Unix(next.ExpiresAt, 0).UTC(), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return session.ErrRefreshMismatch
}

// DeleteExpired removes every lapsed session and returns how many went.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrUnavailable, err)
	}
	return res.RowsAffected()
}
