package httpapi

import (
	"errors"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/contacts"
	"github.com/MrEthical07/phonebook/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalMessage = "Internal Server Error"

// public lists errors whose text is safe to return, most specific first.
var public = []error{
	contacts.ErrContactNotFound,
	contacts.ErrAccessDenied,
	contacts.ErrMissingFields,
	contacts.ErrMissingFavorite,

	phonebook.ErrPasswordMismatch,
	phonebook.ErrWeakPassword,
	phonebook.ErrInvalidSubscription,
	phonebook.ErrInvalidAvatar,
	phonebook.ErrAlreadyVerified,
	phonebook.ErrInvalidCredentials,
	phonebook.ErrEmailNotVerified,
	phonebook.ErrVerificationNotFound,
	phonebook.ErrNoActiveSession,
	phonebook.ErrInvalidOrExpiredToken,
	phonebook.ErrEmailInUse,
	phonebook.ErrLoginRateLimited,
	phonebook.ErrRecoveryRateLimited,
	phonebook.ErrForbidden,
	phonebook.ErrNotFound,
}

func statusFor(err error) int {
	if errors.Is(err, errBadBody) {
		return http.StatusBadRequest
	}
	if errors.Is(err, phonebook.ErrEngineNotReady) {
		return http.StatusServiceUnavailable
	}
	switch phonebook.KindOf(err) {
	case phonebook.KindValidation:
		return http.StatusBadRequest
	case phonebook.KindAuthentication:
		return http.StatusUnauthorized
	case phonebook.KindAuthorization:
		return http.StatusForbidden
	case phonebook.KindNotFound:
		return http.StatusNotFound
	case phonebook.KindConflict:
		return http.StatusConflict
	case phonebook.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	var be bindError
	if errors.As(err, &be) {
		return be.msg
	}

	switch phonebook.KindOf(err) {
	case phonebook.KindInternal:
		if errors.Is(err, phonebook.ErrMailUnavailable) {
			return capitalize(phonebook.ErrMailUnavailable.Error())
		}
		if errors.Is(err, phonebook.ErrEngineNotReady) {
			return http.StatusText(http.StatusServiceUnavailable)
		}
		return internalMessage
	case phonebook.KindAuthentication, phonebook.KindAuthorization:
		if errors.Is(err, phonebook.ErrInvalidCredentials) ||
			errors.Is(err, phonebook.ErrEmailNotVerified) ||
			errors.Is(err, contacts.ErrAccessDenied) ||
			errors.Is(err, phonebook.ErrForbidden) {
			break
		}
		return middleware.InvalidTokenMessage
	}

	for _, target := range public {
		if errors.Is(err, target) {
			return capitalize(target.Error())
		}
	}
	return capitalize(err.Error())
}

// writeError is the only place handlers turn an error into a response.
// Internal failures are logged with their cause and answered generically.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": messageFor(err)})
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
