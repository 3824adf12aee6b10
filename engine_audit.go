package phonebook

import (
	"context"
	"errors"
)

const (
	auditEventSignupSuccess            = "signup_success"
	auditEventSignupDuplicate          = "signup_duplicate"
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginRateLimited         = "login_rate_limited"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventLogout                   = "logout"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventPasswordChange           = "password_change"
	auditEventSubscriptionChange       = "subscription_change"
	auditEventAvatarChange             = "avatar_change"
	auditEventRecoveryRateLimited      = "recovery_rate_limited"
)

// AuditErrorCode is the stable, non-sensitive failure label carried by
// audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnverified         AuditErrorCode = "email_not_verified"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrNoSession          AuditErrorCode = "no_session"
	auditErrUnknownUser        AuditErrorCode = "unknown_user"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrPasswordMismatch   AuditErrorCode = "password_mismatch"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrUnverified
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrRecoveryRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidOrExpiredToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrNoActiveSession):
		return auditErrNoSession
	case errors.Is(err, ErrUnknownUser):
		return auditErrUnknownUser
	case errors.Is(err, ErrVerificationNotFound), errors.Is(err, ErrUserNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, ErrWeakPassword):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrEmailInUse):
		return auditErrDuplicate
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrMailUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
