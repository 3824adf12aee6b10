package recovery

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Purpose binds a token to the flow that issued it.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// ErrMalformed is returned by Digest for input that no Codec could have issued.
var ErrMalformed = errors.New("recovery: malformed token")

const (
	minTokenBytes = 16
	maxTokenBytes = 64
)

// Codec issues tokens and digests them. It is safe for concurrent use.
type Codec struct {
	secret []byte
	size   int
}

// NewCodec returns a Codec issuing tokens of size random bytes.
func NewCodec(secret []byte, size int) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("recovery secret required")
	}
	if size < minTokenBytes || size > maxTokenBytes {
		return nil, fmt.Errorf("recovery token size must be between %d and %d bytes", minTokenBytes, maxTokenBytes)
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Codec{secret: key, size: size}, nil
}

// Issue returns a fresh URL-safe token and the digest to store for it.
func (c *Codec) Issue(purpose Purpose) (token, digest string, err error) {
	raw := make([]byte, c.size)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("recovery token entropy: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, c.sum(purpose, token), nil
}

// Digest returns the stored form of token. Tokens with the wrong alphabet
// or length fail with ErrMalformed without touching any store.
func (c *Codec) Digest(purpose Purpose, token string) (string, error) {
	if len(token) != base64.RawURLEncoding.EncodedLen(c.size) {
		return "", ErrMalformed
	}
	if _, err := base64.RawURLEncoding.DecodeString(token); err != nil {
		return "", ErrMalformed
	}
	return c.sum(purpose, token), nil
}

func (c *Codec) sum(purpose Purpose, token string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(purpose))
	mac.Write([]byte{':'})
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
