// Package memstore keeps users and contacts in process memory. It backs the
// load test binary and the engine and HTTP tests; production uses the
// Postgres repositories.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/phonebook"
)

type userRecord struct {
	user         phonebook.User
	verifyDigest string
	resetDigest  string
	resetExpires time.Time
}

// Users is a phonebook.UserStore guarded by one mutex. Every method works on
// copies, so callers never share a *User with the store.
type Users struct {
	mu      sync.Mutex
	byID    map[string]*userRecord
	byEmail map[string]string
	now     func() time.Time
}

var _ phonebook.UserStore = (*Users)(nil)

func NewUsers() *Users {
	return &Users{
		byID:    make(map[string]*userRecord),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// WithClock sets the time source stamped into UpdatedAt.
func (s *Users) WithClock(now func() time.Time) *Users {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Users) Create(_ context.Context, u *phonebook.User, verificationDigest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return phonebook.ErrEmailInUse
	}
	s.byID[u.ID] = &userRecord{user: *u, verifyDigest: verificationDigest}
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Users) ByEmail(_ context.Context, email string) (*phonebook.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, phonebook.ErrUserNotFound
	}
	u := s.byID[id].user
	return &u, nil
}

func (s *Users) ByID(_ context.Context, id string) (*phonebook.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, phonebook.ErrUserNotFound
	}
	u := rec.user
	return &u, nil
}

func (s *Users) ConsumeVerification(_ context.Context, digest string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if digest == "" {
		return "", phonebook.ErrVerificationNotFound
	}
	for id, rec := range s.byID {
		if rec.verifyDigest == digest && !rec.user.Verified {
			rec.user.Verified = true
			rec.verifyDigest = ""
			rec.user.UpdatedAt = s.now()
			return id, nil
		}
	}
	return "", phonebook.ErrVerificationNotFound
}

func (s *Users) RotateVerification(_ context.Context, userID, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return phonebook.ErrUserNotFound
	}
	if rec.user.Verified {
		return phonebook.ErrAlreadyVerified
	}
	rec.verifyDigest = digest
	return nil
}

func (s *Users) SetResetToken(_ context.Context, userID, digest string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return phonebook.ErrUserNotFound
	}
	rec.resetDigest = digest
	rec.resetExpires = expiresAt
	return nil
}

func (s *Users) ConsumeReset(_ context.Context, digest, newHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if digest == "" {
		return "", phonebook.ErrInvalidOrExpiredToken
	}
	for id, rec := range s.byID {
		if rec.resetDigest != digest {
			continue
		}
		live := rec.resetExpires.After(now)
		rec.resetDigest = ""
		rec.resetExpires = time.Time{}
		if !live {
			return "", phonebook.ErrInvalidOrExpiredToken
		}
		rec.user.PasswordHash = newHash
		rec.user.UpdatedAt = now
		return id, nil
	}
	return "", phonebook.ErrInvalidOrExpiredToken
}

func (s *Users) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return s.update(userID, func(u *phonebook.User) { u.PasswordHash = passwordHash })
}

func (s *Users) UpdateSubscription(_ context.Context, userID string, sub phonebook.Subscription) error {
	return s.update(userID, func(u *phonebook.User) { u.Subscription = sub })
}

func (s *Users) UpdateAvatar(_ context.Context, userID, avatarURL string) error {
	return s.update(userID, func(u *phonebook.User) { u.AvatarURL = avatarURL })
}

func (s *Users) update(userID string, apply func(*phonebook.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok {
		return phonebook.ErrUserNotFound
	}
	apply(&rec.user)
	rec.user.UpdatedAt = s.now()
	return nil
}

// Delete removes a user outright. No engine flow deletes users; tests use it
// to orphan a live session.
func (s *Users) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[userID]; ok {
		delete(s.byEmail, rec.user.Email)
		delete(s.byID, userID)
	}
}

// ResetDeadline exposes the stored reset expiry of userID.
func (s *Users) ResetDeadline(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[userID]
	if !ok || rec.resetDigest == "" {
		return time.Time{}, false
	}
	return rec.resetExpires, true
}
