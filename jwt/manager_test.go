package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	testAccessSecret  = []byte("access-secret-access-secret-0001")
	testRefreshSecret = []byte("refresh-secret-refresh-secret-01")
)

func newTestManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		Issuer:        "phonebook",
		Now:           now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	base := Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
	}

	cases := map[string]func(c *Config){
		"zero access ttl":   func(c *Config) { c.AccessTTL = 0 },
		"zero refresh ttl":  func(c *Config) { c.RefreshTTL = 0 },
		"refresh < access":  func(c *Config) { c.RefreshTTL = time.Second },
		"missing secret":    func(c *Config) { c.RefreshSecret = nil },
		"identical secrets": func(c *Config) { c.RefreshSecret = append([]byte(nil), c.AccessSecret...) },
		"negative leeway":   func(c *Config) { c.Leeway = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if _, err := NewManager(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}

	if _, err := NewManager(base); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)

	access, err := m.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, err := m.IssueRefresh("user-1")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if !refresh.ExpiresAt.After(access.ExpiresAt) {
		t.Fatalf("refresh expiry %v should be after access expiry %v", refresh.ExpiresAt, access.ExpiresAt)
	}

	claims, err := m.Verify(access.Value, PurposeAccess)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != "user-1" || claims.Purpose != PurposeAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	claims, err = m.Verify(refresh.Value, PurposeRefresh)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if claims.Purpose != PurposeRefresh {
		t.Fatalf("unexpected purpose %q", claims.Purpose)
	}
}

func TestVerifyRejectsWrongPurpose(t *testing.T) {
	m := newTestManager(t, nil)

	access, _ := m.IssueAccess("user-1")
	refresh, _ := m.IssueRefresh("user-1")

	if _, err := m.Verify(refresh.Value, PurposeAccess); !errors.Is(err, ErrWrongPurpose) {
		t.Fatalf("expected ErrWrongPurpose for refresh-as-access, got %v", err)
	}
	if _, err := m.Verify(access.Value, PurposeRefresh); !errors.Is(err, ErrWrongPurpose) {
		t.Fatalf("expected ErrWrongPurpose for access-as-refresh, got %v", err)
	}
}

func TestVerifyRejectsPurposeClaimMismatchUnderSameSecret(t *testing.T) {
	m := newTestManager(t, nil)

	claims := Claims{
		Purpose: PurposeRefresh,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "phonebook",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
		},
	}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(forged, PurposeAccess); !errors.Is(err, ErrWrongPurpose) {
		t.Fatalf("expected ErrWrongPurpose, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newTestManager(t, clock)

	access, err := m.IssueAccess("user-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := m.Verify(access.Value, PurposeAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyInvalidSignatureAndMalformed(t *testing.T) {
	m := newTestManager(t, nil)
	access, _ := m.IssueAccess("user-1")

	parts := strings.Split(access.Value, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	if _, err := m.Verify(tampered, PurposeAccess); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	for _, bad := range []string{"", "   ", "abc", "a.b.c"} {
		if _, err := m.Verify(bad, PurposeAccess); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", bad, err)
		}
	}
}

func TestVerifyRejectsForeignAlgorithm(t *testing.T) {
	m := newTestManager(t, nil)
	claims := Claims{
		Purpose: PurposeAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testAccessSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(tok, PurposeAccess); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestIssueWithinSameSecondProducesDistinctTokens(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	m := newTestManager(t, func() time.Time { return fixed })

	a, _ := m.IssueAccess("user-1")
	b, _ := m.IssueAccess("user-1")
	if a.Value == b.Value {
		t.Fatal("expected distinct tokens for two grants in the same second")
	}
}
