// Package session issues, validates and revokes opaque bearer tokens backed
// by records in the shared key-value store.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// KeyPrefix namespaces session records in the key-value store.
const KeyPrefix = "session:"

// DefaultTTL is the session lifetime. The store TTL uses the same window.
const DefaultTTL = 24 * time.Hour

// tokenBytes is the entropy of a session token.
const tokenBytes = 32

var (
	// ErrInvalid means the token is unknown or its record is corrupt.
	ErrInvalid = errors.New("invalid session")
	// ErrExpired means the record exists but its expiry has passed.
	ErrExpired = errors.New("expired session")
)

// Payload is the identity data attached to a new session.
type Payload struct {
	Profile any    `json:"profile,omitempty"`
	Me      string `json:"me,omitempty"`
	Role    string `json:"role,omitempty"`
}

// Session is a stored session record.
type Session struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	Profile   any       `json:"profile,omitempty"`
	Me        string    `json:"me,omitempty"`
	Role      string    `json:"role,omitempty"`
}

// Expired reports whether the session is no longer valid at now.
// A session is valid up to, but not including, ExpiresAt.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Key returns the store key of token.
func Key(token string) string {
	return KeyPrefix + token
}

// TokenFromKey strips the prefix from a store key.
func TokenFromKey(key string) (string, bool) {
	return strings.CutPrefix(key, KeyPrefix)
}

// Decode parses a stored record.
func Decode(raw string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	if s.ExpiresAt.IsZero() {
		return nil, errors.New("decode session: missing expiresAt")
	}

	return &s, nil
}

// Stale reports whether a stored record should be evicted at now, either
// because it has expired or because it cannot be parsed, and which.
func Stale(raw string, now time.Time) (string, bool) {
	s, err := Decode(raw)
	if err != nil {
		return ReasonCorrupt, true
	}

	if s.Expired(now) {
		return ReasonExpired, true
	}

	return "", false
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
