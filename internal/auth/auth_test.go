package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

func setupTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(&config.AuthConfig{
		AdminPIN:          "8888",
		JWTSecret:         "test-secret",
		TokenTTL:          60,
		Issuer:            "weighright-test",
		PINAttemptsPerMin: 3,
	}, logger.NewWithOutput("error", io.Discard))
	require.NoError(t, err)
	return a
}

func TestPINManager(t *testing.T) {
	pm, err := NewPINManager("8888", "")
	require.NoError(t, err)

	ok, err := pm.Verify("8888")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pm.Verify("1234")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPINManager_FromHash(t *testing.T) {
	hash, err := HashPIN("2468")
	require.NoError(t, err)

	pm, err := NewPINManager("8888", hash)
	require.NoError(t, err)

	ok, _ := pm.Verify("2468")
	assert.True(t, ok, "the hash takes precedence over the plain pin")
	ok, _ = pm.Verify("8888")
	assert.False(t, ok)

	_, err = NewPINManager("", "not-a-bcrypt-hash")
	assert.Error(t, err)
	_, err = HashPIN(" ")
	assert.Error(t, err)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "weighright-test", time.Hour)

	token, err := tm.IssueToken(&types.UserClaims{UserID: "u1", Username: "Clinical Team", Role: types.RoleClinician})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	claims, err := tm.ValidateJWT(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, types.RoleClinician, claims.Role)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", "weighright-test", time.Minute)
	token, err := tm.IssueToken(&types.UserClaims{UserID: "u1", Role: types.RoleClinician})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager("secret", "weighright-test", time.Minute)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ValidateJWT(token.AccessToken)
		assert.True(t, types.IsType(err, types.ErrorTypeAuthentication))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other", "weighright-test", time.Minute)
		_, err := other.ValidateJWT(token.AccessToken)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenManager("secret", "someone-else", time.Minute)
		_, err := other.ValidateJWT(token.AccessToken)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{UserID: "u1", Role: "clinician"})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.ValidateJWT(s)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.ValidateJWT("not.a.token")
		assert.Error(t, err)
	})
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow("client")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow("client")
	assert.False(t, ok)

	ok, _ = rl.Allow("other")
	assert.True(t, ok, "keys are independent")

	current, limit, err := rl.GetLimits("client")
	require.NoError(t, err)
	assert.Equal(t, 0, current)
	assert.Equal(t, 2, limit)

	now = now.Add(30 * time.Second)
	ok, _ = rl.Allow("client")
	assert.True(t, ok, "partial refill after half a period")

	require.NoError(t, rl.Reset("client"))
	current, _, _ = rl.GetLimits("client")
	assert.Equal(t, 2, current)

	now = now.Add(time.Hour)
	_, _ = rl.Allow("client")
	assert.Equal(t, 1, rl.Cleanup(30*time.Minute))
	assert.Equal(t, 1, rl.Len())
}

func TestAuthenticator_AdminLogin(t *testing.T) {
	a := setupTestAuthenticator(t)
	ctx := context.Background()

	_, err := a.AdminLogin(ctx, "0000", "10.0.0.1")
	assert.True(t, types.IsType(err, types.ErrorTypeAuthentication))

	token, err := a.AdminLogin(ctx, "8888", "10.0.0.1")
	require.NoError(t, err)

	claims, err := a.Authorize(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, ClinicianUserID, claims.UserID)
}

func TestAuthenticator_ThrottlesGuessing(t *testing.T) {
	a := setupTestAuthenticator(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.AdminLogin(ctx, "1111", "10.0.0.2")
		assert.True(t, types.IsType(err, types.ErrorTypeAuthentication))
	}
	_, err := a.AdminLogin(ctx, "8888", "10.0.0.2")
	assert.True(t, types.IsType(err, types.ErrorTypeRateLimit), "even the right PIN is refused once throttled")

	_, err = a.AdminLogin(ctx, "8888", "10.0.0.3")
	assert.NoError(t, err)
}

func TestAuthenticator_RejectsPatientTokens(t *testing.T) {
	a := setupTestAuthenticator(t)
	token, err := a.tokens.IssueToken(&types.UserClaims{UserID: "882910", Role: types.RolePatient})
	require.NoError(t, err)

	_, err = a.Authorize(token.AccessToken)
	assert.True(t, types.IsType(err, types.ErrorTypeAuthentication))
}
