package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"time"
)

// Session is the single live grant of a user.
type Session struct {
	UserID        string
	AccessDigest  [32]byte
	RefreshDigest [32]byte

	CreatedAt int64
	ExpiresAt int64
}

// Digest returns the SHA-256 digest under which a token is stored.
func Digest(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// New builds a session for userID holding the given token pair.
func New(userID, accessToken, refreshToken string, createdAt, expiresAt time.Time) *Session {
	return &Session{
		UserID:        userID,
		AccessDigest:  Digest(accessToken),
		RefreshDigest: Digest(refreshToken),
		CreatedAt:     createdAt.Unix(),
		ExpiresAt:     expiresAt.Unix(),
	}
}

// HoldsAccess reports whether token is the access token currently bound to the session.
func (s *Session) HoldsAccess(token string) bool {
	d := Digest(token)
	return subtle.ConstantTimeCompare(d[:], s.AccessDigest[:]) == 1
}

// HoldsRefresh reports whether token is the refresh token currently bound to the session.
func (s *Session) HoldsRefresh(token string) bool {
	d := Digest(token)
	return subtle.ConstantTimeCompare(d[:], s.RefreshDigest[:]) == 1
}

// Expired reports whether the grant has lapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// Remaining returns the time left before expiry, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := time.Unix(s.ExpiresAt, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
