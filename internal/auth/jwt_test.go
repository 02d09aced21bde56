package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vona/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueToken(testSecret, "alice@example.com", "Alice", time.Hour)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(testSecret, token)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "vona", claims.Issuer)
}

func TestTokenRejection(t *testing.T) {
	t.Parallel()

	t.Run("wrong_secret", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueToken(testSecret, "alice@example.com", "", time.Hour)
		require.NoError(t, err)

		_, err = auth.ValidateToken("another-secret-another-secret-00", token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()

		token, err := auth.IssueToken(testSecret, "alice@example.com", "", -time.Minute)
		require.NoError(t, err)

		_, err = auth.ValidateToken(testSecret, token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()

		_, err := auth.ValidateToken(testSecret, "not.a.jwt")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestService(t *testing.T) {
	t.Parallel()

	t.Run("verify_token_returns_identity", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewService(nil, testSecret, time.Hour)

		token, err := auth.IssueToken(testSecret, "bob@example.com", "Bob", time.Hour)
		require.NoError(t, err)

		identity, err := svc.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", identity.Email)
		assert.Equal(t, "bob@example.com", identity.ActorID())
		assert.Equal(t, "Bob", identity.Name)
	})

	t.Run("login_flow_requires_provider", func(t *testing.T) {
		t.Parallel()

		svc := auth.NewService(nil, testSecret, time.Hour)
		assert.False(t, svc.LoginConfigured())

		_, err := svc.AuthorizationURL("state")
		assert.ErrorIs(t, err, auth.ErrNotConfigured)
	})

	t.Run("authorization_url_carries_state_and_client", func(t *testing.T) {
		t.Parallel()

		provider := auth.NewGoogleProvider("client-123", "secret", "http://localhost:8080/api/v1/auth/callback")
		svc := auth.NewService(provider, testSecret, time.Hour)
		require.True(t, svc.LoginConfigured())

		u, err := svc.AuthorizationURL("xyzzy")
		require.NoError(t, err)
		assert.Contains(t, u, "client_id=client-123")
		assert.Contains(t, u, "state=xyzzy")
		assert.Contains(t, u, "accounts.google.com")
	})
}
