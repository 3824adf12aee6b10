package phonebook

import "errors"

var (
	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("invalid or missing data")
	// ErrPasswordMismatch is returned when a password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrWeakPassword is returned when a new password violates the length policy.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrInvalidSubscription is returned for a tier outside starter, pro and business.
	ErrInvalidSubscription = errors.New("invalid subscription")
	// ErrInvalidAvatar is returned when an uploaded avatar cannot be decoded.
	ErrInvalidAvatar = errors.New("invalid avatar image")
	// ErrAlreadyVerified is returned by ResendVerification for verified accounts.
	ErrAlreadyVerified = errors.New("verification has already been passed")

	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken covers every token failure: malformed, bad signature,
	// expired, wrong purpose, or a refresh token that lost its session.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("email or password is wrong")
	// ErrEmailNotVerified is returned by Login before the email is verified.
	ErrEmailNotVerified = errors.New("please verify your email")

	// ErrNoSession is returned when a validly signed access token is not the
	// one bound to the user's current session.
	ErrNoSession = errors.New("invalid or expired token")
	// ErrUnknownUser is returned when the token subject no longer exists.
	ErrUnknownUser = errors.New("invalid or expired token")
	// ErrForbidden is returned when a principal acts on a resource it does not own.
	ErrForbidden = errors.New("access denied")

	// ErrNotFound is returned for missing contacts and similar resources.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound is returned by UserStore lookups.
	ErrUserNotFound = errors.New("user not found")
	// ErrVerificationNotFound is returned for an unknown or consumed
	// verification token.
	ErrVerificationNotFound = errors.New("user not found")
	// ErrNoActiveSession is returned by Logout when there is nothing to end.
	ErrNoActiveSession = errors.New("no active session found")
	// ErrInvalidOrExpiredToken is returned for an unknown, consumed or
	// expired password-reset token.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrEmailInUse is returned by Signup for a registered email.
	ErrEmailInUse = errors.New("email in use")

	// ErrLoginRateLimited is returned when the login budget for an email or
	// client IP is exhausted.
	ErrLoginRateLimited = errors.New("too many login attempts")
	// ErrRecoveryRateLimited is returned when resend-verification or
	// forgot-password requests exceed their window.
	ErrRecoveryRateLimited = errors.New("too many recovery requests")

	// ErrStoreUnavailable wraps failures of the user or session store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMailUnavailable wraps failures of the outbound mailer.
	ErrMailUnavailable = errors.New("error sending email")
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind groups errors by how a caller should react to them. Transports map a
// Kind to a status code.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrValidation, KindValidation},
	{ErrPasswordMismatch, KindValidation},
	{ErrWeakPassword, KindValidation},
	{ErrInvalidSubscription, KindValidation},
	{ErrInvalidAvatar, KindValidation},
	{ErrAlreadyVerified, KindValidation},

	{ErrMissingToken, KindAuthentication},
	{ErrInvalidToken, KindAuthentication},
	{ErrInvalidCredentials, KindAuthentication},
	{ErrEmailNotVerified, KindAuthentication},

	{ErrNoSession, KindAuthorization},
	{ErrUnknownUser, KindAuthorization},
	{ErrForbidden, KindAuthorization},

	{ErrNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrVerificationNotFound, KindNotFound},
	{ErrNoActiveSession, KindNotFound},
	{ErrInvalidOrExpiredToken, KindNotFound},

	{ErrEmailInUse, KindConflict},

	{ErrLoginRateLimited, KindRateLimited},
	{ErrRecoveryRateLimited, KindRateLimited},
}

// KindOf classifies err. Anything not derived from one of the sentinels
// above, including wrapped store and mailer failures, is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
