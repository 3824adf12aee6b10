package internaldefs

import (
	"github.com/MrEthical07/phonebook"
)

type CounterDef struct {
	ID   phonebook.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   phonebook.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter fed by Engine.AuditDropped.
const AuditDroppedName = "phonebook_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: phonebook.MetricSignupSuccess, Name: "phonebook_signup_success_total", Help: "Accounts created."},
	{ID: phonebook.MetricSignupDuplicate, Name: "phonebook_signup_duplicate_total", Help: "Signups rejected because the email is taken."},
	{ID: phonebook.MetricLoginSuccess, Name: "phonebook_login_success_total", Help: "Successful logins."},
	{ID: phonebook.MetricLoginFailure, Name: "phonebook_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: phonebook.MetricLoginUnverified, Name: "phonebook_login_unverified_total", Help: "Logins rejected because the email is not verified."},
	{ID: phonebook.MetricLoginRateLimited, Name: "phonebook_login_rate_limited_total", Help: "Logins rejected by the rate limiter."},
	{ID: phonebook.MetricRefreshSuccess, Name: "phonebook_refresh_success_total", Help: "Token pairs rotated."},
	{ID: phonebook.MetricRefreshFailure, Name: "phonebook_refresh_failure_total", Help: "Refresh attempts rejected."},
	{ID: phonebook.MetricLogout, Name: "phonebook_logout_total", Help: "Sessions ended by logout."},
	{ID: phonebook.MetricLogoutNoSession, Name: "phonebook_logout_no_session_total", Help: "Logouts without a live session."},
	{ID: phonebook.MetricSessionCreated, Name: "phonebook_session_created_total", Help: "Sessions written by login."},
	{ID: phonebook.MetricSessionInvalidated, Name: "phonebook_session_invalidated_total", Help: "Sessions deleted."},
	{ID: phonebook.MetricAuthSuccess, Name: "phonebook_auth_success_total", Help: "Requests authenticated."},
	{ID: phonebook.MetricAuthMissingToken, Name: "phonebook_auth_missing_token_total", Help: "Requests without a bearer token."},
	{ID: phonebook.MetricAuthInvalidToken, Name: "phonebook_auth_invalid_token_total", Help: "Requests with a malformed, forged or expired token."},
	{ID: phonebook.MetricAuthNoSession, Name: "phonebook_auth_no_session_total", Help: "Requests whose token is not bound to a live session."},
	{ID: phonebook.MetricAuthUnknownUser, Name: "phonebook_auth_unknown_user_total", Help: "Requests whose token names a missing user."},
	{ID: phonebook.MetricEmailVerificationRequest, Name: "phonebook_email_verification_request_total", Help: "Verification emails requested again."},
	{ID: phonebook.MetricEmailVerificationSuccess, Name: "phonebook_email_verification_success_total", Help: "Emails verified."},
	{ID: phonebook.MetricEmailVerificationFailure, Name: "phonebook_email_verification_failure_total", Help: "Unknown or used verification tokens."},
	{ID: phonebook.MetricPasswordResetRequest, Name: "phonebook_password_reset_request_total", Help: "Password reset links requested."},
	{ID: phonebook.MetricPasswordResetConfirmSuccess, Name: "phonebook_password_reset_confirm_success_total", Help: "Passwords reset."},
	{ID: phonebook.MetricPasswordResetConfirmFailure, Name: "phonebook_password_reset_confirm_failure_total", Help: "Password resets rejected."},
	{ID: phonebook.MetricPasswordChangeSuccess, Name: "phonebook_password_change_success_total", Help: "Passwords changed by signed-in users."},
	{ID: phonebook.MetricPasswordChangeInvalidOld, Name: "phonebook_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: phonebook.MetricRecoveryRateLimited, Name: "phonebook_recovery_rate_limited_total", Help: "Recovery requests rejected by the rate limiter."},
	{ID: phonebook.MetricMailFailure, Name: "phonebook_mail_failure_total", Help: "Outbound emails that failed to send."},
}

var HistogramDefs = []HistogramDef{
	{ID: phonebook.MetricAuthenticateLatency, Name: "phonebook_authenticate_latency_seconds", Help: "Authenticate latency."},
	{ID: phonebook.MetricLoginLatency, Name: "phonebook_login_latency_seconds", Help: "Login latency, dominated by password hashing."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's eight
// latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
