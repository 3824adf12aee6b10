package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose discriminates access tokens from refresh tokens. It is carried in
// the "typ" claim and selects the signing secret.
type Purpose string

const (
	// PurposeAccess marks short-lived tokens presented on every request.
	PurposeAccess Purpose = "access"
	// PurposeRefresh marks long-lived tokens exchanged for a new pair.
	PurposeRefresh Purpose = "refresh"
)

var (
	// ErrMalformed is returned when the token cannot be decoded at all.
	ErrMalformed = errors.New("jwt: malformed token")
	// ErrInvalidSignature is returned when the signature does not verify under any known secret.
	ErrInvalidSignature = errors.New("jwt: invalid signature")
	// ErrExpired is returned when exp has passed (after leeway).
	ErrExpired = errors.New("jwt: token expired")
	// ErrWrongPurpose is returned when a token minted for one purpose is presented for another.
	ErrWrongPurpose = errors.New("jwt: wrong token purpose")
	// ErrInvalidClaims covers issuer, audience, iat and subject violations.
	ErrInvalidClaims = errors.New("jwt: invalid claims")
)

// Config carries signing secrets and lifetimes. Lifetimes have no defaults:
// a zero TTL is a configuration error.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Claims is the payload of every token the Manager mints.
type Claims struct {
	Purpose Purpose `json:"typ"`
	jwt.RegisteredClaims
}

// Token is a signed token string with its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Manager issues and verifies HS256 tokens. It holds no mutable state and is
// safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssueAccess mints an access token for userID.
func (m *Manager) IssueAccess(userID string) (Token, error) {
	return m.issue(userID, PurposeAccess)
}

// IssueRefresh mints a refresh token for userID.
func (m *Manager) IssueRefresh(userID string) (Token, error) {
	return m.issue(userID, PurposeRefresh)
}

func (m *Manager) issue(userID string, purpose Purpose) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("empty subject")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl(purpose))

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret(purpose))
	if err != nil {
		return Token{}, fmt.Errorf("sign %s token: %w", purpose, err)
	}

	// exp is stored with second precision; report what the token actually says.
	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks signature, expiry and purpose and returns the claims.
// Failures are one of ErrMalformed, ErrInvalidSignature, ErrExpired,
// ErrWrongPurpose or ErrInvalidClaims.
func (m *Manager) Verify(tokenStr string, purpose Purpose) (*Claims, error) {
	if purpose != PurposeAccess && purpose != PurposeRefresh {
		return nil, fmt.Errorf("unknown purpose %q", purpose)
	}
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrMalformed
	}

	claims, err := m.parse(tokenStr, m.secret(purpose))
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			// A token that verifies under the other purpose's secret is
			// well-formed, just presented in the wrong place.
			if _, otherErr := m.parse(tokenStr, m.secret(other(purpose))); otherErr == nil || !errors.Is(otherErr, ErrInvalidSignature) {
				return nil, ErrWrongPurpose
			}
		}
		return nil, err
	}

	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.now().Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidClaims)
	}

	return claims, nil
}

func (m *Manager) parse(tokenStr string, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}

func (m *Manager) secret(purpose Purpose) []byte {
	if purpose == PurposeRefresh {
		return m.config.RefreshSecret
	}
	return m.config.AccessSecret
}

func (m *Manager) ttl(purpose Purpose) time.Duration {
	if purpose == PurposeRefresh {
		return m.config.RefreshTTL
	}
	return m.config.AccessTTL
}

func other(purpose Purpose) Purpose {
	if purpose == PurposeAccess {
		return PurposeRefresh
	}
	return PurposeAccess
}
