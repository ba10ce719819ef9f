package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio.admin/internal/logging"
)

const testSecret = "correct-horse-battery"

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	issuer, err := NewTokenIssuer([]byte("signing-key"), 30*time.Minute, NewMemoryRevoker())
	require.NoError(t, err)
	return NewVerifier(testSecret, issuer, logging.Discard())
}

func TestVerifyExactMatch(t *testing.T) {
	v := newTestVerifier(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		supplied string
		want     bool
	}{
		{"equal", testSecret, true},
		{"last char differs", testSecret[:len(testSecret)-1] + "x", false},
		{"case differs", strings.ToUpper(testSecret), false},
		{"surrounding whitespace", " " + testSecret + " ", false},
		{"empty", "", false},
		{"oversized", strings.Repeat(testSecret, 10000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, err := v.Verify(ctx, tt.supplied)
			require.NoError(t, err)
			assert.Equal(t, tt.want, valid)
		})
	}
}

func TestVerifyFailsClosedWithoutSecret(t *testing.T) {
	v := NewVerifier("", nil, logging.Discard())

	for _, supplied := range []string{"", "anything", testSecret} {
		valid, err := v.Verify(context.Background(), supplied)
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.False(t, valid)
	}

	_, err := v.Authorize(context.Background(), Credentials{Secret: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLoginIssuesToken(t *testing.T) {
	v := newTestVerifier(t)
	ctx := context.Background()

	grant, err := v.Login(ctx, testSecret)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.NotEmpty(t, grant.Token)
	assert.True(t, grant.ExpiresAt.After(time.Now()))

	role, err := v.Authorize(ctx, Credentials{Token: grant.Token})
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)
}

func TestLoginWrongSecret(t *testing.T) {
	v := newTestVerifier(t)

	grant, err := v.Login(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, grant)
}

func TestAuthorizeEachCallIndependently(t *testing.T) {
	v := newTestVerifier(t)
	ctx := context.Background()

	role, err := v.Authorize(ctx, Credentials{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)

	role, err = v.Authorize(ctx, Credentials{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)

	role, err = v.Authorize(ctx, Credentials{Secret: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, RoleNone, role)

	_, err = v.Authorize(ctx, Credentials{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Authorize(ctx, Credentials{Token: "not-a-jwt"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSecretTakesPrecedenceOverToken(t *testing.T) {
	v := newTestVerifier(t)
	ctx := context.Background()

	grant, err := v.Login(ctx, testSecret)
	require.NoError(t, err)

	_, err = v.Authorize(ctx, Credentials{Secret: "wrong", Token: grant.Token})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	v := newTestVerifier(t)
	ctx := context.Background()

	grant, err := v.Login(ctx, testSecret)
	require.NoError(t, err)

	require.NoError(t, v.Logout(ctx, grant.Token))

	_, err = v.Authorize(ctx, Credentials{Token: grant.Token})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The raw secret is unaffected by token revocation.
	_, err = v.Authorize(ctx, Credentials{Secret: testSecret})
	assert.NoError(t, err)
}

func TestRefreshRotatesToken(t *testing.T) {
	v := newTestVerifier(t)
	ctx := context.Background()

	grant, err := v.Login(ctx, testSecret)
	require.NoError(t, err)

	fresh, err := v.Refresh(ctx, grant.Token)
	require.NoError(t, err)
	assert.NotEqual(t, grant.Token, fresh.Token)

	_, err = v.Authorize(ctx, Credentials{Token: fresh.Token})
	assert.NoError(t, err)
	_, err = v.Authorize(ctx, Credentials{Token: grant.Token})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = v.Refresh(ctx, grant.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = v.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTokensDisabled(t *testing.T) {
	v := NewVerifier(testSecret, nil, logging.Discard())
	ctx := context.Background()

	grant, err := v.Login(ctx, testSecret)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Empty(t, grant.Token)

	_, err = v.Authorize(ctx, Credentials{Token: "anything"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "owner", RoleOwner.String())
	assert.Equal(t, "none", RoleNone.String())
}
