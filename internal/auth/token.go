// Package auth issues and verifies the bearer tokens that carry a caller's
// identity and role.
//
// The role is captured at issuance. A user promoted or demoted after a token
// was issued keeps the old role until that token expires or a new one is
// issued; the store is never consulted during verification.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hygienix/backend/internal/model"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrForbidden       = errors.New("forbidden")
)

// Identity is the caller as described by a verified token.
type Identity struct {
	ID    int64
	Name  string
	Role  model.UserRole
	Email string
	Phone string
}

func IdentityFromUser(u model.User) Identity {
	return Identity{ID: u.ID, Name: u.Name, Role: u.Role, Email: u.Email, Phone: u.Phone}
}

type Claims struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for identity that expires after the manager's TTL.
func (m *TokenManager) Issue(identity Identity) (string, error) {
	now := m.now()
	claims := Claims{
		ID:    identity.ID,
		Name:  identity.Name,
		Role:  string(identity.Role),
		Email: identity.Email,
		Phone: identity.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", identity.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks signature and expiry. An empty token is ErrUnauthenticated,
// anything else that fails is ErrInvalidToken.
func (m *TokenManager) Verify(tokenString string) (Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Identity{}, ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID <= 0 {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		ID:    claims.ID,
		Name:  claims.Name,
		Role:  model.UserRole(claims.Role),
		Email: claims.Email,
		Phone: claims.Phone,
	}, nil
}

// RequireRole fails with ErrForbidden unless identity holds role.
func RequireRole(identity Identity, role model.UserRole) error {
	if identity.Role != role {
		return ErrForbidden
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
// It returns "" when the header is absent or not a bearer credential.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
