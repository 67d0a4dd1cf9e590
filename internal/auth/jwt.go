// Package auth issues and validates the two token kinds used by the API:
// short-lived HS256 access tokens carried as Bearer headers, and opaque
// refresh tokens stored in Valkey with rotation on every use.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"demandflow/internal/models"
)

const issuer = "demandflow"

// AccessTokenTTL is how long an access token stays valid. Clients are
// expected to refresh on 401.
const AccessTokenTTL = 15 * time.Minute

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims carried by access tokens.
type Claims struct {
	Role        string `json:"role"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Tokens signs and validates access tokens with an HMAC secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token signer. The secret comes from configuration,
// never from a hardcoded default outside development.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: AccessTokenTTL}
}

// Generate signs a JWT for the given user using HS256.
func (t *Tokens) Generate(user *models.User) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role:        string(user.Role),
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies the token signature and required claims.
func (t *Tokens) ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != issuer || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserID extracts the subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
