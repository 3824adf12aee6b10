package recovery

import (
	"errors"
	"strings"
	"testing"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec([]byte("recovery-secret-recovery-secret-!"), 32)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestNewCodecRejectsBadConfig(t *testing.T) {
	if _, err := NewCodec(nil, 32); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewCodec([]byte("k"), 8); err == nil {
		t.Fatal("expected error for short token size")
	}
	if _, err := NewCodec([]byte("k"), 65); err == nil {
		t.Fatal("expected error for oversized token")
	}
}

func TestIssueDigestMatches(t *testing.T) {
	c := testCodec(t)

	token, digest, err := c.Issue(PurposeVerify)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("token must be URL safe: %q", token)
	}
	if strings.Contains(digest, token) {
		t.Fatal("digest must not embed the token")
	}

	again, err := c.Digest(PurposeVerify, token)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if again != digest {
		t.Fatal("digest of issued token must be stable")
	}
}

func TestDigestIsPurposeBound(t *testing.T) {
	c := testCodec(t)
	token, verifyDigest, err := c.Issue(PurposeVerify)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	resetDigest, err := c.Digest(PurposeReset, token)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if resetDigest == verifyDigest {
		t.Fatal("the same token must digest differently per purpose")
	}
}

func TestDigestIsSecretBound(t *testing.T) {
	a := testCodec(t)
	b, err := NewCodec([]byte("another-secret-another-secret-!!"), 32)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, digest, err := a.Issue(PurposeReset)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	other, err := b.Digest(PurposeReset, token)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if other == digest {
		t.Fatal("digests under different secrets must differ")
	}
}

func TestDigestRejectsMalformed(t *testing.T) {
	c := testCodec(t)
	for _, tok := range []string{"", "short", strings.Repeat("!", 43), strings.Repeat("a", 500)} {
		if _, err := c.Digest(PurposeVerify, tok); !errors.Is(err, ErrMalformed) {
			t.Fatalf("token %q: expected ErrMalformed, got %v", tok, err)
		}
	}
}

func TestIssueIsUnique(t *testing.T) {
	c := testCodec(t)
	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		token, _, err := c.Issue(PurposeReset)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatal("duplicate recovery token")
		}
		seen[token] = struct{}{}
	}
}
