package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", 1, 7)

	access, err := m.GenerateToken(7, "mlgoo", "ADMIN")
	require.NoError(t, err)
	claims, err := m.VerifyKind(access, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "mlgoo", claims.Username)
	assert.Equal(t, "ADMIN", claims.Role)

	refresh, err := m.GenerateRefreshToken(7, "mlgoo", "ADMIN")
	require.NoError(t, err)
	_, err = m.VerifyKind(refresh, KindAccess)
	assert.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestJWTManager_RejectsExpiredAndForeign(t *testing.T) {
	m := NewJWTManager("secret", 1, 7)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }
	tok, err := m.GenerateToken(1, "u", "BLGU_USER")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.VerifyToken(tok)
	assert.Error(t, err)

	other := NewJWTManager("other", 1, 7)
	fresh, err := other.GenerateToken(1, "u", "BLGU_USER")
	require.NoError(t, err)
	_, err = m.VerifyToken(fresh)
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	assert.Len(t, GenerateRandomString(16), 32)
	assert.NotEqual(t, GenerateRandomString(8), GenerateRandomString(8))
}
