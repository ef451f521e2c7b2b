// Package auth gates the command channel (§6.1) and the relay's REST
// status surface behind a single signed bearer token issued to whoever
// holds the operator password. There is no multi-user account model here:
// one operator provisions the relay, so this is a trimmed descendant of the
// teacher's per-tenant JWT stack rather than a full auth service. Grounded
// on internal/auth/jwt.go's JWTManager (HS256, golang-jwt/jwt/v5,
// RegisteredClaims with issuer/audience/expiry) and internal/auth/
// middleware.go's bearer-header extraction.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid or expired token")
)

// Claims is the relay's operator token payload.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Manager issues and validates the relay's operator bearer tokens.
type Manager struct {
	secret         []byte
	accessDuration time.Duration
}

// NewManager constructs a Manager from the configured signing secret.
func NewManager(secret string, accessDuration time.Duration) *Manager {
	return &Manager{secret: []byte(secret), accessDuration: accessDuration}
}

// IssueToken signs a new access token for the named operator account.
func (m *Manager) IssueToken(operator string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessDuration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "options-relay",
			Audience:  []string{"options-relay-command-channel"},
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a bearer token, returning the operator
// subject on success.
func (m *Manager) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return "", ErrInvalidToken
	}
	return claims.Operator, nil
}

// BearerToken extracts the token from a "Bearer <token>" Authorization
// header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}
