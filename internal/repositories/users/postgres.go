// Package users stores accounts in Postgres. It implements
// phonebook.UserStore and reports misses with the phonebook sentinels.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/internal/dbx"
)

// PostgresRepository implements phonebook.UserStore over dbx.DBTX.
type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

var _ phonebook.UserStore = (*PostgresRepository)(nil)

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// WithClock replaces time.Now for updated_at stamps.
func (r *PostgresRepository) WithClock(now func() time.Time) *PostgresRepository {
	r.now = now
	return r
}

const userColumns = `id, name, email, password_hash, subscription, avatar_url, verified, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, u *phonebook.User, verificationDigest string) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, subscription, avatar_url, verified, verification_digest, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Subscription), u.AvatarURL,
		u.Verified, verificationDigest, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if dbx.IsCode(err, dbx.CodeUniqueViolation) {
			return phonebook.ErrEmailInUse
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ByEmail(ctx context.Context, email string) (*phonebook.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) ByID(ctx context.Context, id string) (*phonebook.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if err != nil && dbx.IsCode(err, dbx.CodeInvalidTextFormat) {
		return nil, phonebook.ErrUserNotFound
	}
	return u, err
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*phonebook.User, error) {
	var (
		u   phonebook.User
		sub string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &sub, &u.AvatarURL, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, phonebook.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Subscription = phonebook.Subscription(sub)
	return &u, nil
}

// ConsumeVerification marks the owner of digest verified and clears the
// digest in one statement, so each token verifies at most once.
func (r *PostgresRepository) ConsumeVerification(ctx context.Context, digest string) (string, error) {
	query := `
		UPDATE users
		SET verified = TRUE, verification_digest = NULL, updated_at = $2
		WHERE verification_digest = $1 AND verified = FALSE
		RETURNING id
	`
	var id string
	if err := r.db.QueryRowContext(ctx, query, digest, r.now()).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", phonebook.ErrVerificationNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

// RotateVerification replaces the pending verification digest. A verified
// account keeps its state and reports ErrAlreadyVerified.
func (r *PostgresRepository) RotateVerification(ctx context.Context, userID, digest string) error {
	query := `
		UPDATE users
		SET verification_digest = CASE WHEN verified THEN verification_digest ELSE $2 END
		WHERE id = $1
		RETURNING verified
	`
	var verified bool
	if err := r.db.QueryRowContext(ctx, query, userID, digest).Scan(&verified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return phonebook.ErrUserNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	if verified {
		return phonebook.ErrAlreadyVerified
	}
	return nil
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, userID, digest string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_digest = $2, reset_expires_at = $3
		WHERE id = $1
	`
	return r.execOne(ctx, query, userID, digest, expiresAt)
}

// ConsumeReset installs newHash for the owner of an unexpired reset digest.
// A matching digest is cleared in the same statement whether or not it has
// expired, so an expired link cannot linger on the row.
func (r *PostgresRepository) ConsumeReset(ctx context.Context, digest, newHash string, now time.Time) (string, error) {
	query := `
		WITH target AS (
			SELECT id, reset_expires_at > $3 AS live
			FROM users
			WHERE reset_digest = $1
			FOR UPDATE
		)
		UPDATE users u
		SET password_hash = CASE WHEN t.live THEN $2 ELSE u.password_hash END,
			updated_at = CASE WHEN t.live THEN $3 ELSE u.updated_at END,
			reset_digest = NULL,
			reset_expires_at = NULL
		FROM target t
		WHERE u.id = t.id
		RETURNING u.id, t.live
	`
	var (
		id   string
		live bool
	)
	if err := r.db.QueryRowContext(ctx, query, digest, newHash, now).Scan(&id, &live); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", phonebook.ErrInvalidOrExpiredToken
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	if !live {
		return "", phonebook.ErrInvalidOrExpiredToken
	}
	return id, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, query, userID, passwordHash, r.now())
}

func (r *PostgresRepository) UpdateSubscription(ctx context.Context, userID string, sub phonebook.Subscription) error {
	query := `UPDATE users SET subscription = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, query, userID, string(sub), r.now())
}

func (r *PostgresRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string) error {
	query := `UPDATE users SET avatar_url = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, query, userID, avatarURL, r.now())
}

// execOne runs a single-row UPDATE and maps zero affected rows to
// ErrUserNotFound.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return phonebook.ErrUserNotFound
	}
	return nil
}
