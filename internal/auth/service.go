// Package auth implements the admin access gate: a single shared password
// exchanged for a signed session token.
package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/acgallery/service/internal/apperr"
)

const (
	// CookieName carries the session token.
	CookieName = "acgallery_admin_token"
	// TokenTTL is the lifetime of a session.
	TokenTTL = 7 * 24 * time.Hour

	roleAdmin = "admin"
)

// ErrInvalidPassword is returned by Login for a wrong password.
var ErrInvalidPassword = apperr.Unauthorized("Invalid password")

// ErrInvalidToken is returned by Verify for a missing, malformed, expired or
// foreign token.
var ErrInvalidToken = apperr.Unauthorized("Unauthorized")

// Claims is the payload of a session token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and checks admin session tokens.
type Service struct {
	password []byte
	secret   []byte
	now      func() time.Time
}

// NewService creates a new auth Service.
func NewService(password, jwtSecret string) *Service {
	return &Service{password: []byte(password), secret: []byte(jwtSecret), now: time.Now}
}

// Login compares password with the configured one and returns a new token.
func (s *Service) Login(password string) (string, error) {
	if len(s.password) == 0 || subtle.ConstantTimeCompare([]byte(password), s.password) != 1 {
		return "", ErrInvalidPassword
	}
	return s.issueToken()
}

// issueToken creates a signed HS256 token for the admin role.
func (s *Service) issueToken() (string, error) {
	now := s.now()
	claims := Claims{
		Role: roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify accepts unexpired tokens signed with the configured secret that
// carry the admin role.
func (s *Service) Verify(token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Role != roleAdmin {
		return ErrInvalidToken
	}
	return nil
}
