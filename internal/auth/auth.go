// Package auth implements the admin gate: a single shared secret, compared in
// constant time, plus short-lived signed tokens issued after a successful
// verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"portfolio.admin/internal/crypto"
)

var (
	ErrNotConfigured = errors.New("admin secret not configured")
	ErrUnauthorized  = errors.New("unauthorized")
)

// Role is the outcome of authorization. There is exactly one privileged
// identity, the site owner.
type Role int

const (
	RoleNone Role = iota
	RoleOwner
)

func (r Role) String() string {
	if r == RoleOwner {
		return "owner"
	}
	return "none"
}

// Credentials carries whatever the caller presented. Secret wins when both
// are set.
type Credentials struct {
	Secret string
	Token  string
}

func (c Credentials) empty() bool {
	return c.Secret == "" && c.Token == ""
}

// Grant is returned by a successful login.
type Grant struct {
	Token     string
	ExpiresAt time.Time
}

// Verifier checks credentials against the configured secret. It holds no
// per-caller state; every call is checked independently.
type Verifier struct {
	secret string
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewVerifier creates a verifier. tokens may be nil, in which case only the
// raw secret is accepted and logins return no token.
func NewVerifier(secret string, tokens *TokenIssuer, logger *slog.Logger) *Verifier {
	return &Verifier{
		secret: secret,
		tokens: tokens,
		logger: logger.With("component", "auth"),
	}
}

// Configured reports whether a secret is set.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// Verify compares supplied against the configured secret.
func (v *Verifier) Verify(ctx context.Context, supplied string) (bool, error) {
	if !v.Configured() {
		v.logger.ErrorContext(ctx, "verification attempted without configured secret")
		return false, ErrNotConfigured
	}

	valid := crypto.Equal(supplied, v.secret)
	if valid {
		v.logger.InfoContext(ctx, "admin verification succeeded")
	} else {
		v.logger.WarnContext(ctx, "admin verification failed")
	}
	return valid, nil
}

// Login verifies the secret and, when a token issuer is present, issues a
// session token. A nil grant with a nil error means the secret was wrong.
func (v *Verifier) Login(ctx context.Context, secret string) (*Grant, error) {
	valid, err := v.Verify(ctx, secret)
	if err != nil || !valid {
		return nil, err
	}
	if v.tokens == nil {
		return &Grant{}, nil
	}

	token, claims, err := v.tokens.Issue(RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &Grant{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout revokes a previously issued token.
func (v *Verifier) Logout(ctx context.Context, token string) error {
	if !v.Configured() {
		return ErrNotConfigured
	}
	if v.tokens == nil || token == "" {
		return nil
	}
	return v.tokens.Revoke(ctx, token)
}

// Refresh exchanges a valid token for a fresh one and revokes the old one.
func (v *Verifier) Refresh(ctx context.Context, token string) (*Grant, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	if v.tokens == nil || token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := v.tokens.Parse(ctx, token)
	if err != nil || claims.Role != RoleOwner.String() {
		v.logger.WarnContext(ctx, "token refresh rejected")
		return nil, ErrUnauthorized
	}

	fresh, freshClaims, err := v.tokens.Issue(RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	if err := v.tokens.Revoke(ctx, token); err != nil {
		return nil, fmt.Errorf("revoking token: %w", err)
	}
	return &Grant{Token: fresh, ExpiresAt: freshClaims.ExpiresAt.Time}, nil
}

// Authorize resolves credentials to a role. It fails closed: a missing
// configuration is ErrNotConfigured, anything else that does not match is
// ErrUnauthorized.
func (v *Verifier) Authorize(ctx context.Context, creds Credentials) (Role, error) {
	if !v.Configured() {
		return RoleNone, ErrNotConfigured
	}
	if creds.empty() {
		v.logger.WarnContext(ctx, "authorization rejected", "reason", "no credentials")
		return RoleNone, ErrUnauthorized
	}

	if creds.Secret != "" {
		if !crypto.Equal(creds.Secret, v.secret) {
			v.logger.WarnContext(ctx, "authorization rejected", "reason", "secret mismatch")
			return RoleNone, ErrUnauthorized
		}
		return RoleOwner, nil
	}

	if v.tokens == nil {
		v.logger.WarnContext(ctx, "authorization rejected", "reason", "tokens disabled")
		return RoleNone, ErrUnauthorized
	}

	claims, err := v.tokens.Parse(ctx, creds.Token)
	if err != nil {
		v.logger.WarnContext(ctx, "authorization rejected", "reason", "invalid token", "error", err)
		return RoleNone, ErrUnauthorized
	}
	if claims.Role != RoleOwner.String() {
		return RoleNone, ErrUnauthorized
	}
	return RoleOwner, nil
}
