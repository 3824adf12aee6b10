package phonebook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/phonebook/internal/limiters"
	"github.com/MrEthical07/phonebook/recovery"
	"github.com/MrEthical07/phonebook/session"
	"go.uber.org/zap"
)

// RequestPasswordReset mails a single-use reset link valid for
// Recovery.ResetTTL. A newer request replaces any outstanding link. Unknown
// emails return nil without sending anything.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrValidation
	}

	if err := e.checkRecoveryBudget(ctx, limiters.FlowForgotPassword, email); err != nil {
		return err
	}
	e.metricInc(MetricPasswordResetRequest)

	user, err := e.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", err, nil)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	token, digest, err := e.recovery.Issue(recovery.PurposeReset)
	if err != nil {
		return err
	}
	expiresAt := e.now().Add(e.config.Recovery.ResetTTL)
	if err := e.users.SetResetToken(ctx, user.ID, digest, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, nil, nil)
	return e.send(ctx, resetMessage(user.Email, e.resetURL(token)))
}

// CompletePasswordReset sets a new password using a reset token.
//
// Mismatched passwords fail with ErrPasswordMismatch before any store is
// touched. The token is checked and cleared in the same write that installs
// the new hash, so a token works once and never after its expiry; an expired
// token is cleared when presented. Every other outcome fails with
// ErrInvalidOrExpiredToken. The user's session is ended on success.
func (e *Engine) CompletePasswordReset(ctx context.Context, token, newPassword, confirmPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if newPassword != confirmPassword {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return ErrPasswordMismatch
	}
	if newPassword == "" {
		return ErrValidation
	}

	digest, err := e.recovery.Digest(recovery.PurposeReset, token)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return ErrInvalidOrExpiredToken
	}

	hash, err := e.hashPassword(newPassword)
	if err != nil {
		return err
	}

	userID, err := e.users.ConsumeReset(ctx, digest, hash, e.now())
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", err, nil)
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.endSessionAfterCredentialChange(ctx, userID)
	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, userID, nil, nil)
	return nil
}

// endSessionAfterCredentialChange revokes the live grant. The password is
// already changed, so a store failure here is logged, not returned.
func (e *Engine) endSessionAfterCredentialChange(ctx context.Context, userID string) {
	err := e.sessions.Delete(ctx, userID)
	switch {
	case err == nil:
		e.metricInc(MetricSessionInvalidated)
	case errors.Is(err, session.ErrNotFound):
	default:
		e.logger.Error("session revocation after credential change failed", zap.String("user_id", userID), zap.Error(err))
	}
}
