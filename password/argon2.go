package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// DefaultMinPasswordBytes matches the signup and login form rules.
	DefaultMinPasswordBytes = 6
	// DefaultMaxPasswordBytes bounds the work an attacker can force per hash.
	DefaultMaxPasswordBytes = 1024
)

var (
	// ErrTooShort is returned by Hash for passwords under the configured minimum.
	ErrTooShort = errors.New("password: too short")
	// ErrTooLong is returned by Hash and Verify for passwords over the configured maximum.
	ErrTooLong = errors.New("password: too long")
	// ErrInvalidHash is returned when a stored hash is not a supported PHC string.
	ErrInvalidHash = errors.New("password: invalid hash")
)

// Config holds the Argon2id cost parameters and length policy.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// Zero values fall back to DefaultMinPasswordBytes / DefaultMaxPasswordBytes.
	MinPasswordBytes int
	MaxPasswordBytes int
}

// DefaultConfig returns interactive-login parameters (64 MiB, t=3, p=2).
func DefaultConfig() Config {
	return Config{
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		MinPasswordBytes: DefaultMinPasswordBytes,
		MaxPasswordBytes: DefaultMaxPasswordBytes,
	}
}

// Argon2 hashes and verifies passwords as PHC strings.
type Argon2 struct {
	config Config

	// dummy is verified against when there is no stored hash, so that
	// "unknown account" costs as much as "wrong password".
	dummy string
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MinPasswordBytes == 0 {
		cfg.MinPasswordBytes = DefaultMinPasswordBytes
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	a := &Argon2{config: cfg}
	dummy, err := a.encode(strings.Repeat("x", cfg.MinPasswordBytes))
	if err != nil {
		return nil, err
	}
	a.dummy = dummy
	return a, nil
}

// MinLength returns the minimum accepted password length in bytes.
func (a *Argon2) MinLength() int { return a.config.MinPasswordBytes }

// Hash derives a PHC-encoded Argon2id hash. Password bytes are used exactly
// as provided (no Unicode normalization).
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < a.config.MinPasswordBytes {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrTooShort, a.config.MinPasswordBytes)
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrTooLong
	}
	return a.encode(password)
}

func (a *Argon2) encode(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encodedHash. The comparison is
// constant time in the derived key.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrTooLong
	}

	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.hash)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// DummyVerify burns one verification against a throwaway hash and always
// reports false.
func (a *Argon2) DummyVerify(password string) {
	if len(password) > a.config.MaxPasswordBytes {
		password = password[:a.config.MaxPasswordBytes]
	}
	_, _ = a.Verify(password, a.dummy)
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	weaker := a.config.Memory > parsed.memory ||
		a.config.Time > parsed.time ||
		a.config.Parallelism > parsed.parallelism ||
		a.config.KeyLength != uint32(len(parsed.hash))
	return weaker, nil
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: format", ErrInvalidHash)
	}
	if parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm", ErrInvalidHash)
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: version", ErrInvalidHash)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version", ErrInvalidHash)
	}

	parsed := &parsedPHC{}
	if err := parseParams(parts[3], parsed); err != nil {
		return nil, err
	}

	parsed.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(parsed.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrInvalidHash)
	}
	parsed.hash, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(parsed.hash) == 0 {
		return nil, fmt.Errorf("%w: digest", ErrInvalidHash)
	}

	return parsed, nil
}

func parseParams(part string, out *parsedPHC) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return fmt.Errorf("%w: parameters", ErrInvalidHash)
	}

	seen := map[string]bool{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || seen[k] {
			return fmt.Errorf("%w: parameter entry", ErrInvalidHash)
		}
		seen[k] = true

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return fmt.Errorf("%w: memory parameter", ErrInvalidHash)
			}
			out.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return fmt.Errorf("%w: time parameter", ErrInvalidHash)
			}
			out.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return fmt.Errorf("%w: parallelism parameter", ErrInvalidHash)
			}
			out.parallelism = uint8(n)
		default:
			return fmt.Errorf("%w: unsupported parameter", ErrInvalidHash)
		}
	}

	return nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	case cfg.MinPasswordBytes < 1:
		return errors.New("password minimum length must be >= 1")
	case cfg.MaxPasswordBytes < cfg.MinPasswordBytes:
		return errors.New("password maximum length must be >= minimum length")
	}
	return nil
}
