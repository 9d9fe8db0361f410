// ABOUTME: Unit tests for JWT session token issuance and verification
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, and missing claims

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

func TestIssuer_ValidToken(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	token, err := issuer.Issue("user-123", "alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q, want %q", claims.Username, "alice")
	}
}

func TestIssuer_InvalidToken(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				other := NewIssuer([]byte("different-secret"), time.Hour)
				token, _ := other.Issue("user-123", "alice")
				return token
			}(),
		},
		{
			name: "unsigned token",
			token: func() string {
				claims := jwt.MapClaims{
					"sub":      "user-123",
					"username": "alice",
					"exp":      time.Now().Add(time.Hour).Unix(),
				}
				token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
				signed, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
				return signed
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssuer_ExpiredToken(t *testing.T) {
	// Negative lifetime produces a token that expired before it was issued.
	issuer := NewIssuer(testSecret, -time.Hour)

	token, err := issuer.Issue("user-123", "alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = issuer.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestIssuer_MissingClaims(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{
			name: "missing sub",
			claims: jwt.MapClaims{
				"username": "alice",
				"exp":      time.Now().Add(time.Hour).Unix(),
			},
		},
		{
			name: "empty sub",
			claims: jwt.MapClaims{
				"sub":      "",
				"username": "alice",
				"exp":      time.Now().Add(time.Hour).Unix(),
			},
		},
		{
			name: "missing username",
			claims: jwt.MapClaims{
				"sub": "user-123",
				"exp": time.Now().Add(time.Hour).Unix(),
			},
		},
		{
			name: "non-string sub",
			claims: jwt.MapClaims{
				"sub":      42,
				"username": "alice",
				"exp":      time.Now().Add(time.Hour).Unix(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims)
			signed, err := token.SignedString(testSecret)
			if err != nil {
				t.Fatalf("SignedString() error = %v", err)
			}

			_, err = issuer.Verify(signed)
			if !errors.Is(err, ErrMissingClaim) {
				t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
			}
		})
	}
}

func TestIssuer_TokenLifetime(t *testing.T) {
	issuer := NewIssuer(testSecret, 168*time.Hour)

	token, err := issuer.Issue("user-123", "alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		t.Fatalf("GetExpirationTime() error = %v", err)
	}
	iat, err := parsed.Claims.GetIssuedAt()
	if err != nil {
		t.Fatalf("GetIssuedAt() error = %v", err)
	}

	if got := exp.Sub(iat.Time); got != 168*time.Hour {
		t.Errorf("token lifetime = %v, want %v", got, 168*time.Hour)
	}
}
