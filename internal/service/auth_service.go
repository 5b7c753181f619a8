package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	AdminRole       = "admin"
	DefaultTokenTTL = 24 * time.Hour
	tokenIssuer     = "storefront-service"
)

type JwtCustomClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService authenticates the store administrator.
type AuthService struct {
	adminEmail        string
	adminPasswordHash []byte
	secret            []byte
	ttl               time.Duration
}

// NewAuthService creates a new instance of AuthService. passwordHash is a
// bcrypt hash.
func NewAuthService(adminEmail, passwordHash, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{
		adminEmail:        strings.ToLower(strings.TrimSpace(adminEmail)),
		adminPasswordHash: []byte(passwordHash),
		secret:            []byte(secret),
		ttl:               ttl,
	}
}

// Login returns a signed admin token for valid credentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if s.adminEmail == "" || len(s.adminPasswordHash) == 0 {
		logger.Warn().Msg("Admin login attempted but no admin account is configured")
		return "", ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) != 1 {
		return "", ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(s.adminPasswordHash, []byte(password)); err != nil {
		return "", ErrUnauthorized
	}
	return s.IssueToken(email)
}

// IssueToken signs an admin token for email without checking a password.
func (s *AuthService) IssueToken(email string) (string, error) {
	now := time.Now()
	claims := &JwtCustomClaims{
		Name:  "Administrator",
		Email: email,
		Role:  AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tkn.SignedString(s.secret)
}

func (s *AuthService) Secret() []byte {
	return s.secret
}
