package phonebook

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/MrEthical07/phonebook/session"
	"github.com/google/uuid"
)

// Subscription is the billing tier of an account.
type Subscription string

const (
	SubscriptionStarter  Subscription = "starter"
	SubscriptionPro      Subscription = "pro"
	SubscriptionBusiness Subscription = "business"
)

// Valid reports whether s is one of the known tiers.
func (s Subscription) Valid() bool {
	switch s {
	case SubscriptionStarter, SubscriptionPro, SubscriptionBusiness:
		return true
	}
	return false
}

// ParseSubscription accepts a tier name in any case.
func ParseSubscription(raw string) (Subscription, error) {
	s := Subscription(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidSubscription
	}
	return s, nil
}

// User is the persisted account. Recovery token digests live only in the
// store and never leave it.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Subscription Subscription
	AvatarURL    string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser fills in a fresh id, the default tier and timestamps.
func NewUser(name, email, passwordHash string, now time.Time) *User {
	return &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Subscription: SubscriptionStarter,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UserView is the public projection of a User returned to clients.
type UserView struct {
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Subscription Subscription `json:"subscription"`
	AvatarURL    string       `json:"avatarURL,omitempty"`
	Verified     bool         `json:"verified"`
}

// View projects u for clients.
func (u *User) View() UserView {
	return UserView{
		Name:         u.Name,
		Email:        u.Email,
		Subscription: u.Subscription,
		AvatarURL:    u.AvatarURL,
		Verified:     u.Verified,
	}
}

// Principal is the authenticated caller attached to a request by the guard.
type Principal struct {
	UserID string
	User   User
}

// LoginResult carries a freshly minted token pair.
type LoginResult struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	User             UserView
}

// SignupInput is the validated signup form.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// UserStore persists accounts and their recovery token digests.
//
// Lookups return ErrUserNotFound. Consume* methods clear the token they
// match in the same statement, so a token can succeed at most once.
type UserStore interface {
	// Create inserts u with its initial verification digest.
	// A duplicate email fails with ErrEmailInUse.
	Create(ctx context.Context, u *User, verificationDigest string) error
	ByEmail(ctx context.Context, email string) (*User, error)
	ByID(ctx context.Context, id string) (*User, error)

	// ConsumeVerification marks the owner of digest verified and clears the
	// digest. Unknown or already consumed digests fail with
	// ErrVerificationNotFound.
	ConsumeVerification(ctx context.Context, digest string) (string, error)
	// RotateVerification replaces the verification digest of an unverified
	// user. A verified user fails with ErrAlreadyVerified.
	RotateVerification(ctx context.Context, userID, digest string) error

	SetResetToken(ctx context.Context, userID, digest string, expiresAt time.Time) error
	// ConsumeReset installs newHash for the owner of an unexpired digest and
	// clears digest and expiry. A matching but expired digest is cleared too,
	// leaving the hash alone. Every miss fails with ErrInvalidOrExpiredToken.
	ConsumeReset(ctx context.Context, digest, newHash string, now time.Time) (string, error)

	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateSubscription(ctx context.Context, userID string, sub Subscription) error
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
}

// SessionStore holds at most one session per user.
//
// Get, Delete and Rotate fail with session.ErrNotFound when there is no
// live session. Rotate fails with session.ErrRefreshMismatch when the
// presented refresh digest is not the stored one.
type SessionStore interface {
	Put(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, userID string) (*session.Session, error)
	Delete(ctx context.Context, userID string) error
	Rotate(ctx context.Context, userID string, presented [32]byte, next *session.Session) error
}

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers recovery emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// AvatarService derives default avatars and stores uploaded ones.
type AvatarService interface {
	// Default returns the URL assigned at signup.
	Default(email string) string
	// Save normalizes the uploaded image and returns its public URL.
	// Undecodable input fails with ErrInvalidAvatar.
	Save(ctx context.Context, userID string, src io.Reader, filename string) (string, error)
}
