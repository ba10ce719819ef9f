package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "portfolio-admin"

var ErrTokenRevoked = errors.New("token revoked")

// Claims are carried in every session token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	key     []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// NewTokenIssuer creates an issuer. revoker may be nil to disable logout.
func NewTokenIssuer(key []byte, ttl time.Duration, revoker Revoker) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("token signing key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &TokenIssuer{
		key:     key,
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
	}, nil
}

// Issue returns a signed token for role.
func (t *TokenIssuer) Issue(role Role) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		Role: role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   role.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims, nil
}

// Parse validates signature, issuer, expiry and revocation.
func (t *TokenIssuer) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if t.revoker != nil {
		revoked, err := t.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("checking revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke invalidates a token for the rest of its lifetime. Already-invalid
// tokens are ignored.
func (t *TokenIssuer) Revoke(ctx context.Context, tokenString string) error {
	if t.revoker == nil {
		return nil
	}
	claims, err := t.Parse(ctx, tokenString)
	if err != nil {
		return nil
	}
	return t.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
