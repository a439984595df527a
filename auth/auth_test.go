package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, userID int64, expiry time.Time) string {
	t.Helper()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestParseReadsClaims(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := Parse(signToken(t, 42, expiry))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tok.UserID != 42 {
		t.Errorf("user id = %d", tok.UserID)
	}
	if !tok.Expiry.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", tok.Expiry, expiry)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not-a-jwt"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTokenValidity(t *testing.T) {
	now := time.Now()

	fresh, err := Parse(signToken(t, 1, now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !fresh.Valid(now) {
		t.Error("fresh token should be valid")
	}

	// Inside the skew margin counts as expired.
	closing, err := Parse(signToken(t, 1, now.Add(10*time.Second)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if closing.Valid(now) {
		t.Error("token inside the refresh margin should not be valid")
	}
	if err := closing.Check(now); !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v", err)
	}
}
