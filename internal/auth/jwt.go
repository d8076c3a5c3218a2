// Package auth - jwt.go handles access token creation, signing, and verification
// using a shared HMAC secret, plus startup resolution of that secret.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of a token issued at login.
const DefaultTokenTTL = 24 * time.Hour

const tokenIssuer = "projecthub"

// minSecretLength is the shortest HMAC secret accepted at startup.
const minSecretLength = 32

// ErrInvalidToken is returned for every token that fails validation. Expired,
// forged and malformed tokens are deliberately indistinguishable.
var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims structure
type Claims struct {
	UserID         string  `json:"user_id"`
	OrganizationID *string `json:"organization_id"`
	Role           Role    `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the request identity carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
		Role:           c.Role,
	}
}

// TokenService issues and validates signed, time-limited bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. A zero ttl falls back to DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given identity and returns it with its expiry.
func (s *TokenService) Issue(id Identity) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		UserID:         id.UserID,
		OrganizationID: id.OrganizationID,
		Role:           id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   id.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a token and checks signature, signing method, issuer and expiry.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// isDevMode reports whether the process runs with development conveniences enabled.
func isDevMode() bool {
	devMode := os.Getenv("PHUB_DEV_MODE")
	return devMode == "true" || devMode == "1" || os.Getenv("GIN_MODE") == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ResolveJWTSecret returns the signing secret to use at startup.
// A configured secret must be at least 32 bytes long. Without one, dev mode
// generates an ephemeral secret and any other mode fails fast.
func ResolveJWTSecret(configured string) (string, error) {
	if configured != "" {
		if len(configured) < minSecretLength {
			return "", fmt.Errorf("auth.jwt_secret must be at least %d characters", minSecretLength)
		}
		return configured, nil
	}

	if !isDevMode() {
		return "", errors.New("auth.jwt_secret is required (set PHUB_AUTH_JWT_SECRET); " +
			"generate one with: openssl rand -hex 32")
	}

	secret, err := generateRandomSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate development secret: %w", err)
	}
	slog.Warn("auth.jwt_secret not set, using an auto-generated development secret; tokens will not survive a restart")
	return secret, nil
}
