// Package auth inspects the access token a session was handed. The client
// holds no signing secret; claims are read unverified, for local decisions
// like preemptive refresh before expiry. The server remains the authority.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired marks a token past its expiry.
var ErrExpired = errors.New("auth: token expired")

// Claims is the access token payload.
type Claims struct {
	UserID int64 `json:"user_id,string"`
	jwt.RegisteredClaims
}

// Token is a parsed access token.
type Token struct {
	Raw    string
	UserID int64
	Expiry time.Time
}

// Parse reads the claims of an access token without verifying its
// signature.
func Parse(raw string) (Token, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Token{}, fmt.Errorf("parsing token: %w", err)
	}
	t := Token{Raw: raw, UserID: claims.UserID}
	if claims.ExpiresAt != nil {
		t.Expiry = claims.ExpiresAt.Time
	}
	return t, nil
}

// Valid reports whether the token is usable at the given instant, with a
// small skew margin so a token about to expire is refreshed early.
func (t Token) Valid(now time.Time) bool {
	if t.Expiry.IsZero() {
		return true
	}
	return now.Add(30 * time.Second).Before(t.Expiry)
}

// Check returns ErrExpired when the token is no longer usable.
func (t Token) Check(now time.Time) error {
	if !t.Valid(now) {
		return fmt.Errorf("%w at %s", ErrExpired, t.Expiry.Format(time.RFC3339))
	}
	return nil
}
