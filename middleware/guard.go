package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/phonebook"
)

// InvalidTokenMessage is the body of every rejected request.
const InvalidTokenMessage = "Invalid or expired token"

type principalContextKey struct{}

// Authenticator is the subset of *phonebook.Engine the guards need.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*phonebook.Principal, error)
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *phonebook.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*phonebook.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*phonebook.Principal)
	return p, ok && p != nil
}

// Guard rejects requests without a valid bearer token bound to a live
// session.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, InvalidTokenMessage, http.StatusUnauthorized)
				return
			}

			token, _ := BearerToken(r.Header.Get("Authorization"))
			p, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, messageFor(err), StatusFor(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// StatusFor maps an Authenticate error to its HTTP status.
func StatusFor(err error) int {
	switch phonebook.KindOf(err) {
	case phonebook.KindAuthentication:
		return http.StatusUnauthorized
	case phonebook.KindAuthorization:
		return http.StatusForbidden
	default:
		if errors.Is(err, phonebook.ErrEngineNotReady) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch phonebook.KindOf(err) {
	case phonebook.KindAuthentication, phonebook.KindAuthorization:
		return InvalidTokenMessage
	default:
		return http.StatusText(StatusFor(err))
	}
}
