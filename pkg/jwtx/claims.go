package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Short-lived access tokens limit the damage
// window of a leaked token; the long-lived refresh token is revocable
// server side so it can afford a longer life.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are the signed token claims. Access and refresh tokens share this
// shape; only the Prm secret and the expiry window differ. Nothing in the
// payload itself says which kind of token it is — that is established by
// matching Prm against the server-side keystore.
type Claims struct {
	jwt.RegisteredClaims

	// Prm carries the opaque per-session secret: the keystore primary key
	// in an access token, the secondary key in a refresh token.
	Prm string `json:"prm,omitempty"`
}

// NewClaims builds minimally-correct claims for one token of a pair.
// Expiry is computed as now + validity.
func NewClaims(issuer, audience, subject, prm string, validity time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Prm: prm,
	}
}

// HasAudience reports whether the expected audience is present.
func (c *Claims) HasAudience(expected string) bool {
	for _, aud := range c.Audience {
		if aud == expected {
			return true
		}
	}
	return false
}
