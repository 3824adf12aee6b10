package phonebook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/phonebook/jwt"
	"github.com/MrEthical07/phonebook/session"
)

// Logout ends the session of userID. Without a live session it fails with
// ErrNoActiveSession, however often it is called.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrValidation
	}

	if err := e.sessions.Delete(ctx, userID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricLogoutNoSession)
			return ErrNoActiveSession
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogout, true, userID, nil, nil)
	return nil
}

// LogoutToken ends the session that accessToken belongs to.
//
// The token must carry a valid access signature and name an existing user.
// When the user has no live session it fails with ErrNoActiveSession, so a
// repeated logout reports the missing session rather than a bad token. A
// token that is not the current one fails with ErrNoSession and leaves the
// newer session alone.
func (e *Engine) LogoutToken(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(accessToken) == "" {
		return ErrMissingToken
	}

	claims, err := e.tokens.Verify(accessToken, jwt.PurposeAccess)
	if err != nil {
		return ErrInvalidToken
	}
	if _, err := e.users.ByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUnknownUser
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, err := e.sessions.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricLogoutNoSession)
			return ErrNoActiveSession
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !sess.HoldsAccess(accessToken) {
		return ErrNoSession
	}

	return e.Logout(ctx, claims.Subject)
}

// Refresh trades the current refresh token for a new pair. The swap is a
// compare-and-set on the stored refresh digest: a replayed or superseded
// refresh token fails with ErrInvalidToken and the live session survives.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrMissingToken
	}

	claims, err := e.tokens.Verify(refreshToken, jwt.PurposeRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrInvalidToken, func() map[string]string {
			return map[string]string{"reason": refreshFailureReason(err)}
		})
		return nil, ErrInvalidToken
	}
	userID := claims.Subject

	user, err := e.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, refresh, err := e.issuePair(userID)
	if err != nil {
		return nil, err
	}
	next := session.New(userID, access.Value, refresh.Value, e.now(), refresh.ExpiresAt)

	if err := e.sessions.Rotate(ctx, userID, session.Digest(refreshToken), next); err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrRefreshMismatch) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, ErrInvalidToken, func() map[string]string {
				if errors.Is(err, session.ErrRefreshMismatch) {
					return map[string]string{"reason": "superseded"}
				}
				return map[string]string{"reason": "no_session"}
			})
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, userID, nil, nil)
	return &LoginResult{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		User:             user.View(),
	}, nil
}

func refreshFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return "expired"
	case errors.Is(err, jwt.ErrWrongPurpose):
		return "wrong_purpose"
	case errors.Is(err, jwt.ErrInvalidSignature):
		return "signature"
	case errors.Is(err, jwt.ErrMalformed):
		return "malformed"
	default:
		return "claims"
	}
}
