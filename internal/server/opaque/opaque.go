// Package opaque manufactures random server-side tokens: registration
// confirmation, password reset and the per-user tracking API token.
//
// The package only produces values. Persisting them and clearing them after
// use is the caller's job; the storage layer consumes registration and reset
// tokens with a single conditional UPDATE so a value cannot be replayed.
package opaque

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Token is an opaque value bound to an expiry
type Token struct {
	ExpiresAt time.Time
	Value     string
}

// Expired reports whether the token is past its expiry at now
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// NewValue returns two random UUIDv4 values concatenated without hyphens
// (64 hex characters, 244 random bits).
func NewValue() string {
	a := uuid.New()
	b := uuid.New()
	return strings.ReplaceAll(a.String()+b.String(), "-", "")
}

// Generate creates a token that expires ttl from now
func Generate(ttl time.Duration) Token {
	return GenerateAt(time.Now(), ttl)
}

// GenerateAt creates a token that expires ttl after now
func GenerateAt(now time.Time, ttl time.Duration) Token {
	return Token{
		Value:     NewValue(),
		ExpiresAt: now.Add(ttl).UTC().Truncate(time.Second),
	}
}
