package phonebook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/phonebook/jwt"
	"github.com/MrEthical07/phonebook/session"
)

// Authenticate resolves a bearer access token to its principal.
//
// A valid signature alone is not enough: the token must also be the one
// bound to the user's live session, and the user must still exist.
// Failures, in checking order:
//
//	ErrMissingToken  empty token
//	ErrInvalidToken  bad signature, expired, malformed, or a refresh token
//	ErrNoSession     no live session, or it holds a different access token
//	ErrUnknownUser   the subject no longer exists
//
//	Performance: 1 session read + 1 user read.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()
	}

	if strings.TrimSpace(accessToken) == "" {
		e.metricInc(MetricAuthMissingToken)
		return nil, ErrMissingToken
	}

	claims, err := e.tokens.Verify(accessToken, jwt.PurposeAccess)
	if err != nil {
		e.metricInc(MetricAuthInvalidToken)
		return nil, ErrInvalidToken
	}

	sess, err := e.sessions.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.metricInc(MetricAuthNoSession)
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !sess.HoldsAccess(accessToken) {
		e.metricInc(MetricAuthNoSession)
		return nil, ErrNoSession
	}

	user, err := e.users.ByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricAuthUnknownUser)
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricAuthSuccess)
	return &Principal{UserID: user.ID, User: *user}, nil
}
