package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnauthorized is returned when a key is missing or does not match.
	ErrUnauthorized = errors.New("invalid or missing API key")
	// ErrEmptyKey is returned when hashing an empty key.
	ErrEmptyKey = errors.New("API key must not be empty")
	// errBadHash is returned when the configured hash is not a bcrypt hash.
	errBadHash = errors.New("api_key_hash is not a bcrypt hash")
)

// Verifier checks API keys. The zero value accepts everything.
// It is safe for concurrent use.
type Verifier struct {
	hash []byte
	// last is the most recently accepted key; matching it skips bcrypt.
	last atomic.Pointer[string]
}

// NewVerifier validates the hash. An empty hash disables authentication.
func NewVerifier(hash string) (*Verifier, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &Verifier{}, nil
	}

	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadHash, err)
	}

	return &Verifier{hash: []byte(hash)}, nil
}

// Enabled reports whether keys are checked at all.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Verify returns nil when key matches the configured hash or authentication
// is disabled.
func (v *Verifier) Verify(key string) error {
	if !v.Enabled() {
		return nil
	}

	if key == "" {
		return ErrUnauthorized
	}

	if last := v.last.Load(); last != nil && subtle.ConstantTimeCompare([]byte(*last), []byte(key)) == 1 {
		return nil
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrUnauthorized
	}

	v.last.Store(&key)

	return nil
}

// HashKey returns the bcrypt hash to store as api_key_hash.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}

	return string(hash), nil
}

// KeyFromHeader extracts the key from an Authorization header value,
// accepting both "Bearer <key>" and the bare key.
func KeyFromHeader(value string) string {
	value = strings.TrimSpace(value)

	scheme, rest, found := strings.Cut(value, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}

	return value
}
