// Package token issues and validates signed, time-limited tenant-identity
// tokens. Tokens are stateless HS256 JWTs binding a tenant ID (subject) to
// an absolute expiry; there is no revocation list and no refresh, callers
// re-issue when a token lapses.
package token

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/jasvant6thstreet/distributed-search-elastic/pkg/errors"
)

// DefaultTTL is the validity window applied when none is configured.
const DefaultTTL = 24 * time.Hour

// Service signs and verifies tenant-identity tokens with a shared secret.
type Service struct {
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

// NewService creates a token Service. A non-positive ttl falls back to
// DefaultTTL.
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		logger: slog.Default().With("component", "token-service"),
	}
}

// TTL returns the configured validity window.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for the given tenant, expiring TTL from now.
func (s *Service) Issue(tenantID string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenantId is required", apperrors.ErrInvalidInput)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   tenantID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token for tenant %s: %w", tenantID, err)
	}
	s.logger.Debug("token issued", "tenant", tenantID, "ttl", s.ttl)
	return signed, nil
}

// Validate reports whether the token's signature is intact and its expiry
// has not passed. It never returns an error: malformed, unsigned, tampered,
// and expired tokens all report false.
func (s *Service) Validate(tokenStr string) bool {
	parsed, err := jwt.Parse(tokenStr, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		s.logger.Debug("token validation failed", "error", err)
		return false
	}
	return parsed.Valid
}

// IsExpired reports whether the token's embedded expiry lies in the past.
// A token without a readable expiry counts as expired.
func (s *Service) IsExpired(tokenStr string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Before(time.Now())
}

// TenantID extracts the tenant identity bound into the token. It does not
// verify the signature; callers must Validate first.
func (s *Service) TenantID(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return "", fmt.Errorf("parsing token claims: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no tenant subject", apperrors.ErrUnauthorized)
	}
	return claims.Subject, nil
}

func (s *Service) keyFunc(t *jwt.Token) (interface{}, error) {
	return s.secret, nil
}
