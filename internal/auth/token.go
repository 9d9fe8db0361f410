// ABOUTME: JWT session token issuance and verification for API requests
// ABOUTME: Uses HS256 signing with configurable secret and token lifetime

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims holds the verified identity carried by a session token.
type Claims struct {
	UserID   string
	Username string
}

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// Issuer mints and verifies HS256 signed JWTs for authenticated sessions.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewIssuer creates a token issuer with the given secret and token lifetime.
func NewIssuer(secret []byte, lifetime time.Duration) *Issuer {
	return &Issuer{secret: secret, lifetime: lifetime}
}

var _ TokenVerifier = (*Issuer)(nil)

// Issue creates a new session token for the given user. The user ID goes in
// the "sub" claim and the username in the "username" claim.
func (i *Issuer) Issue(userID, username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(i.lifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify validates the token signature and expiry and extracts the identity claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})

	if err != nil {
		// Check if it's specifically an expiration error
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := mapClaims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	username, ok := mapClaims["username"].(string)
	if !ok || username == "" {
		return nil, fmt.Errorf("%w: username", ErrMissingClaim)
	}

	return &Claims{UserID: sub, Username: username}, nil
}
