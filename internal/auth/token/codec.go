// Package token decodes bearer token claims for local expiry decisions.
//
// Signature verification is deliberately absent: tokens are issued and
// verified by the upstream backend, and this service only needs the time
// claims to decide when to refresh.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the subset of JWT claims the relay cares about.
type Claims struct {
	// ExpiresAt is the token expiry instant. Zero if the token carries no
	// exp claim.
	ExpiresAt time.Time
	// IssuedAt is the token issue instant. Zero if absent.
	IssuedAt time.Time
	// Subject is the sub claim, empty if absent.
	Subject string
}

// Decode parses the claims of a compact JWT without verifying its signature.
// Malformed input returns an error, never a panic.
func Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty token")
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	claims := &Claims{}

	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}

	return claims, nil
}

// Expired reports whether the token is expired at the given instant,
// applying skew as a safety margin against clock drift. A token that cannot
// be decoded, or that carries no expiry claim, is always expired.
func Expired(raw string, now time.Time, skew time.Duration) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(claims.ExpiresAt.Add(-skew))
}
