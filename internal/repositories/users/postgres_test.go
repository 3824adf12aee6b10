package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/phonebook"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db).WithClock(func() time.Time { return fixedNow }), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "subscription", "avatar_url", "verified", "created_at", "updated_at"})
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	u := phonebook.NewUser("Ann", "ann@x.com", "hash", fixedNow)

	q := `(?s)^\s*INSERT\s+INTO\s+users\b.*VALUES\s*\(\$1,.*\$10\)\s*$`
	mock.ExpectExec(q).
		WithArgs(u.ID, "Ann", "ann@x.com", "hash", "starter", "", false, "digest", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), u, "digest"))
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	u := phonebook.NewUser("Ann", "ann@x.com", "hash", fixedNow)

	mock.ExpectExec(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), u, "digest")
	assert.ErrorIs(t, err, phonebook.ErrEmailInUse)
}

func TestByEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)^SELECT\s+id,\s*name,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`
	mock.ExpectQuery(q).
		WithArgs("ann@x.com").
		WillReturnRows(userRows().AddRow("u1", "Ann", "ann@x.com", "hash", "pro", "/avatars/u1.png", true, fixedNow, fixedNow))

	u, err := repo.ByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, phonebook.SubscriptionPro, u.Subscription)
	assert.True(t, u.Verified)
}

func TestByIDNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ByID(context.Background(), "missing")
	assert.ErrorIs(t, err, phonebook.ErrUserNotFound)
}

func TestByIDMalformedUUID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("nope").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, err := repo.ByID(context.Background(), "nope")
	assert.ErrorIs(t, err, phonebook.ErrUserNotFound)
}

func TestByIDDBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.ByID(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
	assert.NotErrorIs(t, err, phonebook.ErrUserNotFound)
}

func TestConsumeVerification(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)UPDATE\s+users\s+SET\s+verified\s*=\s*TRUE.*WHERE\s+verification_digest\s*=\s*\$1\s+AND\s+verified\s*=\s*FALSE.*RETURNING\s+id`
	mock.ExpectQuery(q).
		WithArgs("d1", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery(q).
		WithArgs("d1", fixedNow).
		WillReturnError(sql.ErrNoRows)

	id, err := repo.ConsumeVerification(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = repo.ConsumeVerification(context.Background(), "d1")
	assert.ErrorIs(t, err, phonebook.ErrVerificationNotFound)
}

func TestRotateVerification(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)UPDATE\s+users\s+SET\s+verification_digest\s*=\s*CASE.*RETURNING\s+verified`
	mock.ExpectQuery(q).WithArgs("u1", "d2").
		WillReturnRows(sqlmock.NewRows([]string{"verified"}).AddRow(false))
	mock.ExpectQuery(q).WithArgs("u1", "d3").
		WillReturnRows(sqlmock.NewRows([]string{"verified"}).AddRow(true))
	mock.ExpectQuery(q).WithArgs("ghost", "d4").
		WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	assert.NoError(t, repo.RotateVerification(ctx, "u1", "d2"))
	assert.ErrorIs(t, repo.RotateVerification(ctx, "u1", "d3"), phonebook.ErrAlreadyVerified)
	assert.ErrorIs(t, repo.RotateVerification(ctx, "ghost", "d4"), phonebook.ErrUserNotFound)
}

func TestConsumeReset(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ctx := context.Background()

	q := `(?s)WITH\s+target\s+AS\s*\(\s*SELECT\s+id,\s*reset_expires_at\s*>\s*\$3\s+AS\s+live.*WHERE\s+reset_digest\s*=\s*\$1\s+FOR\s+UPDATE.*` +
		`SET\s+password_hash\s*=\s*CASE\s+WHEN\s+t\.live\s+THEN\s+\$2.*reset_digest\s*=\s*NULL,\s*reset_expires_at\s*=\s*NULL.*RETURNING\s+u\.id,\s*t\.live`
	mock.ExpectQuery(q).
		WithArgs("rd", "newhash", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "live"}).AddRow("u1", true))
	mock.ExpectQuery(q).
		WithArgs("rd", "newhash", fixedNow).
		WillReturnError(sql.ErrNoRows)

	id, err := repo.ConsumeReset(ctx, "rd", "newhash", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = repo.ConsumeReset(ctx, "rd", "newhash", fixedNow)
	assert.ErrorIs(t, err, phonebook.ErrInvalidOrExpiredToken)
}

func TestConsumeResetClearsExpiredDigest(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	// The row comes back with live = false: the digest was nulled but the
	// password left alone.
	mock.ExpectQuery(`(?s)WITH\s+target\s+AS.*reset_digest\s*=\s*NULL.*RETURNING\s+u\.id,\s*t\.live`).
		WithArgs("rd", "newhash", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "live"}).AddRow("u1", false))

	_, err := repo.ConsumeReset(context.Background(), "rd", "newhash", fixedNow)
	assert.ErrorIs(t, err, phonebook.ErrInvalidOrExpiredToken)
}

func TestSetResetToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	expires := fixedNow.Add(time.Hour)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+reset_digest\s*=\s*\$2,\s*reset_expires_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("u1", "rd", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetResetToken(context.Background(), "u1", "rd", expires))
}

func TestUpdatesReportMissingUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs("u1", "h", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+subscription`).
		WithArgs("u1", "business", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+avatar_url`).
		WithArgs("ghost", "/avatars/x.png", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.UpdatePassword(ctx, "u1", "h"))
	assert.NoError(t, repo.UpdateSubscription(ctx, "u1", phonebook.SubscriptionBusiness))
	assert.ErrorIs(t, repo.UpdateAvatar(ctx, "ghost", "/avatars/x.png"), phonebook.ErrUserNotFound)
}
