package auth

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soggo/bounty/internal/models"
	"github.com/soggo/bounty/internal/repo"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Profile{}, &models.RefreshToken{}))
	return NewService(&repo.GormRepo{DB: db}, []byte("access-secret"), []byte("refresh-secret"))
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "longenough")
	require.ErrorIs(t, err, ErrBadEmail)

	_, err = svc.Register(ctx, "a@example.com", "short")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Ada@Example.COM ", "password123")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)

	_, err = svc.Register(ctx, "ada@example.com", "password123")
	require.ErrorIs(t, err, repo.ErrUserAlreadyExists)
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	userID, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong-password")
	require.ErrorIs(t, err, repo.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "password123")
	require.ErrorIs(t, err, repo.ErrInvalidCredentials)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	user, next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The old token was revoked by the rotation.
	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenExpired)

	// The replacement still works.
	_, _, err = svc.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.Refresh(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshRejectsUnknownSignedToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	user, pair, err := svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	// A validly signed token that was never stored must be rejected.
	forged, err := svc.sign(user.ID, time.Now().Add(time.Hour), svc.RefreshSecret)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, forged)

	_, _, err = svc.Refresh(ctx, forged)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyAccessExpired(t *testing.T) {
	svc := newTestService(t)
	svc.AccessTTL = -time.Minute
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestLoginTouchesLastSeen(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	profile, err := svc.Repo.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.LastSeenAt)
}
