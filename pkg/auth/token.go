package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrExpired lets callers tell an expired token from a forged one.
var ErrExpired = errors.New("access token expired")

const clockSkew = 30 * time.Second

// Claims carry identity only. Roles are looked up per request so a revoked
// role takes effect before the token expires.
type Claims struct {
	PrincipalID uuid.UUID `json:"pid"`
	Username    string    `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Verifier signs and checks HS256 access tokens for one issuer.
type Verifier struct {
	key    []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration minutes must be positive")
	}
	return &Verifier{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(clockSkew),
		),
	}, nil
}

// Mint issues a token for principalID valid from now for the configured TTL.
func (v *Verifier) Mint(now time.Time, principalID uuid.UUID, username string) (string, error) {
	if principalID == uuid.Nil {
		return "", errors.New("principal id is required")
	}
	claims := Claims{
		PrincipalID: principalID,
		Username:    strings.TrimSpace(username),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   principalID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, err
	case claims.PrincipalID == uuid.Nil:
		return nil, errors.New("token missing principal id")
	case claims.Subject != "" && claims.Subject != claims.PrincipalID.String():
		return nil, errors.New("token subject does not match principal id")
	}
	return claims, nil
}
