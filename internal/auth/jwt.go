// Package auth issues and verifies access tokens, hashes local passwords and
// talks to GitHub for external sign-in.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A local account posts username and password to /auth/login, or an
//     external account completes the GitHub OAuth round trip.
//  2. The server signs a JWT carrying the caller's identity: account id,
//     username, permission and auth kind.
//  3. The token is returned in the body and also set as an HttpOnly cookie.
//  4. Middleware reads the Authorization header first, then the cookie,
//     validates the token and puts a model.Identity in the request context.
//
// The services trust that Identity as-is: no repository lookup happens on
// the request path to authorise a call.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/watchme/internal/model"
)

const issuer = "watchme"

// DefaultTTL is how long an access token stays valid when no TTL is given.
const DefaultTTL = 12 * time.Hour

// TokenService handles JWT creation and validation with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. A non-positive ttl falls back to
// DefaultTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens from Generate.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// claims is the JWT payload. The account id goes in "sub".
type claims struct {
	Username   string           `json:"username"`
	Permission model.Permission `json:"permission"`
	Kind       model.AuthKind   `json:"kind"`
	jwt.RegisteredClaims
}

// Generate signs a token for id valid for the service TTL.
func (s *TokenService) Generate(id model.Identity) (string, error) {
	return s.GenerateWithDuration(id, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to get an already expired token.
func (s *TokenService) GenerateWithDuration(id model.Identity, d time.Duration) (string, error) {
	if id.AccountID == "" {
		return "", errors.New("auth: cannot sign a token without an account id")
	}

	now := time.Now()
	c := claims{
		Username:   id.Username,
		Permission: id.Permission,
		Kind:       id.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the identity in it.
//
// The library checks the signature, expiry, issuer and algorithm. Pinning
// the method list to HS256 rejects "none" and key-confusion tokens.
func (s *TokenService) Validate(tokenStr string) (model.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Identity{}, fmt.Errorf("auth: token expired")
		}
		return model.Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return model.Identity{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return model.Identity{}, fmt.Errorf("auth: token has no subject")
	}

	return model.Identity{
		AccountID:  c.Subject,
		Username:   c.Username,
		Permission: c.Permission,
		Kind:       c.Kind,
	}, nil
}
