package phonebook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/phonebook/internal/limiters"
	"github.com/MrEthical07/phonebook/password"
	"github.com/MrEthical07/phonebook/recovery"
)

// Signup creates an unverified account and mails its verification link.
//
// The account is stored before the mail is sent; if delivery fails the
// error wraps ErrMailUnavailable and the user can ask for a new link.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (*UserView, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrValidation
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	if _, err := e.users.ByEmail(ctx, email); err == nil {
		e.metricInc(MetricSignupDuplicate)
		e.emitAudit(ctx, auditEventSignupDuplicate, false, "", ErrEmailInUse, nil)
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	hash, err := e.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	token, digest, err := e.recovery.Issue(recovery.PurposeVerify)
	if err != nil {
		return nil, err
	}

	user := NewUser(name, email, hash, e.now())
	if e.avatars != nil {
		user.AvatarURL = e.avatars.Default(email)
	}
	if err := e.users.Create(ctx, user, digest); err != nil {
		if errors.Is(err, ErrEmailInUse) {
			e.metricInc(MetricSignupDuplicate)
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, true, user.ID, nil, nil)

	if err := e.send(ctx, verificationMessage(email, e.verificationURL(token))); err != nil {
		return nil, err
	}

	view := user.View()
	return &view, nil
}

// VerifyEmail consumes a verification token. It succeeds at most once per
// token; unknown and already used tokens fail with ErrVerificationNotFound.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	digest, err := e.recovery.Digest(recovery.PurposeVerify, token)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		return ErrVerificationNotFound
	}

	userID, err := e.users.ConsumeVerification(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", err, nil)
			return ErrVerificationNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, userID, nil, nil)
	return nil
}

// ResendVerification issues a fresh verification link, replacing the
// previous one. A verified account fails with ErrAlreadyVerified. An unknown
// email gets the same nil result as a known one and no mail is sent.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrValidation
	}

	if err := e.checkRecoveryBudget(ctx, limiters.FlowResendVerification, email); err != nil {
		return err
	}
	e.metricInc(MetricEmailVerificationRequest)

	user, err := e.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventEmailVerificationRequest, false, "", err, nil)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	token, digest, err := e.recovery.Issue(recovery.PurposeVerify)
	if err != nil {
		return err
	}
	if err := e.users.RotateVerification(ctx, user.ID, digest); err != nil {
		if errors.Is(err, ErrAlreadyVerified) {
			return ErrAlreadyVerified
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, user.ID, nil, nil)
	return e.send(ctx, verificationMessage(user.Email, e.verificationURL(token)))
}

func (e *Engine) checkRecoveryBudget(ctx context.Context, flow limiters.Flow, email string) error {
	if e.recoveryLimiter == nil {
		return nil
	}
	err := e.recoveryLimiter.CheckRequest(ctx, flow, email, clientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrRecoveryRateLimited):
		e.metricInc(MetricRecoveryRateLimited)
		e.emitAudit(ctx, auditEventRecoveryRateLimited, false, "", ErrRecoveryRateLimited, func() map[string]string {
			return map[string]string{"flow": string(flow)}
		})
		return ErrRecoveryRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// hashPassword maps length-policy failures onto ErrWeakPassword.
func (e *Engine) hashPassword(pass string) (string, error) {
	hash, err := e.passwordHash.Hash(pass)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) || errors.Is(err, password.ErrTooLong) {
			return "", fmt.Errorf("%w: %v", ErrWeakPassword, err)
		}
		return "", err
	}
	return hash, nil
}
