package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTValidator verifies provider-issued HS256 access tokens locally.
type JWTValidator struct {
	secret   []byte
	audience string
}

// NewJWTValidator builds a validator for tokens signed with secret. An empty
// audience disables the aud check.
func NewJWTValidator(secret, audience string) (*JWTValidator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("identity: jwt secret is required")
	}
	return &JWTValidator{secret: []byte(secret), audience: strings.TrimSpace(audience)}, nil
}

func (v *JWTValidator) Validate(_ context.Context, token string) (uuid.UUID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, unauthenticated(errors.New("empty token"))
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5 * time.Second),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, unauthenticated(err)
	}
	if !parsed.Valid {
		return uuid.Nil, unauthenticated(errors.New("token invalid"))
	}
	return parseSubject(claims.Subject)
}

// MintHS256 signs a short-lived token for subject. Used for local
// development against the jwt identity mode.
func MintHS256(secret string, subject uuid.UUID, audience string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("identity: jwt secret is required")
	}
	if subject == uuid.Nil {
		return "", errors.New("identity: subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("identity: ttl must be greater than zero")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
