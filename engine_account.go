package phonebook

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/MrEthical07/phonebook/password"
)

// Current returns the stored profile of userID.
func (e *Engine) Current(ctx context.Context, userID string) (*UserView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	user, err := e.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	view := user.View()
	return &view, nil
}

// UpdateSubscription moves userID to the named tier.
func (e *Engine) UpdateSubscription(ctx context.Context, userID, tier string) (*UserView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	sub, err := ParseSubscription(tier)
	if err != nil {
		return nil, err
	}
	if err := e.users.UpdateSubscription(ctx, userID, sub); err != nil {
		return nil, e.accountWriteError(err)
	}

	e.emitAudit(ctx, auditEventSubscriptionChange, true, userID, nil, func() map[string]string {
		return map[string]string{"subscription": string(sub)}
	})
	return e.Current(ctx, userID)
}

// ChangePassword replaces the password of a signed-in user and ends their
// session, so the caller must log in again.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next, retype string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if next != retype {
		return ErrPasswordMismatch
	}
	if current == "" || next == "" {
		return ErrValidation
	}

	user, err := e.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(current, user.PasswordHash)
	if err != nil && !errors.Is(err, password.ErrTooLong) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChange, false, userID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	hash, err := e.hashPassword(next)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePassword(ctx, userID, hash); err != nil {
		return e.accountWriteError(err)
	}

	e.endSessionAfterCredentialChange(ctx, userID)
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, userID, nil, nil)
	return nil
}

// UpdateAvatar stores an uploaded image through the AvatarService and
// records its URL.
func (e *Engine) UpdateAvatar(ctx context.Context, userID string, src io.Reader, filename string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if e.avatars == nil {
		return "", errors.New("avatar service not configured")
	}
	if src == nil {
		return "", ErrValidation
	}

	avatarURL, err := e.avatars.Save(ctx, userID, src, filename)
	if err != nil {
		if errors.Is(err, ErrInvalidAvatar) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.users.UpdateAvatar(ctx, userID, avatarURL); err != nil {
		return "", e.accountWriteError(err)
	}

	e.emitAudit(ctx, auditEventAvatarChange, true, userID, nil, nil)
	return avatarURL, nil
}

func (e *Engine) accountWriteError(err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return ErrUnknownUser
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
