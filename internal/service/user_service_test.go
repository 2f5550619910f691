package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blgu-assess-go/internal/model"
	"blgu-assess-go/internal/repository"
	"blgu-assess-go/internal/testutil"
	"blgu-assess-go/pkg/token"
)

func newUserService(t *testing.T) (UserService, repository.UserRepository, *token.JWTManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := repository.NewUserRepository(testutil.NewDB(t))
	jwtManager := token.NewJWTManager("test-secret", 1, 7)
	return NewUserService(users, repository.NewTokenBlacklist(rdb), jwtManager), users, jwtManager
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	svc, users, jwtManager := newUserService(t)

	u, err := svc.Register("brgy-san-isidro", "s3cret", "San Isidro")
	require.NoError(t, err)
	assert.Equal(t, model.RoleBLGU, u.Role)
	assert.NotEqual(t, "s3cret", u.Password)

	_, err = svc.Register("brgy-san-isidro", "other", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, _, err = svc.Login("brgy-san-isidro", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login("nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	access, refresh, err := svc.Login("brgy-san-isidro", "s3cret")
	require.NoError(t, err)
	claims, err := jwtManager.VerifyKind(access, token.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	_, err = jwtManager.VerifyKind(refresh, token.KindRefresh)
	require.NoError(t, err)

	profile, err := svc.GetProfile("brgy-san-isidro")
	require.NoError(t, err)
	assert.Equal(t, "San Isidro", profile.BarangayName)

	stored, err := users.FindByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Password, stored.Password)
}

func TestUserService_RefreshToken(t *testing.T) {
	svc, _, _ := newUserService(t)
	_, err := svc.Register("assessor", "pw", "")
	require.NoError(t, err)
	access, refresh, err := svc.Login("assessor", "pw")
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)

	// an access token cannot be used as a refresh token
	_, _, err = svc.RefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	_, _, err = svc.RefreshToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestUserService_Logout(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newUserService(t)
	_, err := svc.Register("mlgoo", "pw", "")
	require.NoError(t, err)
	access, _, err := svc.Login("mlgoo", "pw")
	require.NoError(t, err)

	assert.False(t, svc.IsTokenRevoked(ctx, access))
	require.NoError(t, svc.Logout(ctx, access))
	assert.True(t, svc.IsTokenRevoked(ctx, access))

	assert.Error(t, svc.Logout(ctx, "not-a-token"))
}

func TestUserService_NoBlacklist(t *testing.T) {
	users := repository.NewUserRepository(testutil.NewDB(t))
	jwtManager := token.NewJWTManager("k", 1, 1)
	svc := NewUserService(users, nil, jwtManager)

	access, err := jwtManager.GenerateToken(1, "x", model.RoleBLGU)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), access))
	assert.False(t, svc.IsTokenRevoked(context.Background(), access))
}
