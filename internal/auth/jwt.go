package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/college-forum/internal/model"
)

const (
	issuer = "college-forum"

	// SessionTTL is how long a session token issued at sign-in stays valid.
	SessionTTL = 7 * 24 * time.Hour
)

// TokenService issues and validates the session JWT.
//
// The token carries the principal itself (subject, name, email, picture),
// so a view can restore its principal from the cookie alone without
// another round trip to the identity provider.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; HS256 with a short secret is brute-forceable.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues a session token valid for SessionTTL.
func (s *TokenService) Generate(p model.Principal) (string, error) {
	return s.GenerateWithDuration(p, SessionTTL)
}

// GenerateWithDuration issues a token with a custom lifetime. Tests use a
// negative duration to get an already-expired token.
func (s *TokenService) GenerateWithDuration(p model.Principal, d time.Duration) (string, error) {
	if p.ID == "" {
		return "", errors.New("auth: principal has no ID")
	}
	now := time.Now()

	c := claims{
		Name:    p.DisplayName,
		Email:   p.Email,
		Picture: p.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
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

// Validate parses tokenStr and returns the principal it carries.
//
// The signing method is pinned to HS256: accepting whatever "alg" the
// token names would let an attacker send alg=none.
func (s *TokenService) Validate(tokenStr string) (model.Principal, error) {
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
			return model.Principal{}, fmt.Errorf("auth: token expired")
		}
		return model.Principal{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return model.Principal{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return model.Principal{}, fmt.Errorf("auth: token has no subject")
	}

	return model.Principal{
		ID:          c.Subject,
		DisplayName: c.Name,
		Email:       c.Email,
		AvatarURL:   c.Picture,
	}, nil
}

// Authenticate makes TokenService an identity.Authenticator for session
// tokens.
func (s *TokenService) Authenticate(_ context.Context, token string) (model.Principal, error) {
	return s.Validate(token)
}
