package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lolo262652/amg-jewelry-manager/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAuth(t *testing.T) (*Service, *MemorySessionStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := NewMemorySessionStore()
	svc := NewService(NewUserRepository(db), store, config.JWTConfig{
		Secret:             "unit-test-secret",
		AccessTokenExpire:  time.Hour,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "amg-backoffice",
	}, nil)
	return svc, store
}

func TestSignUpAndSignIn(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, &SignUpInput{Email: " Claire@Atelier.fr ", Password: "s3cret-pass", Name: "Claire"})
	require.NoError(t, err)
	assert.Equal(t, "claire@atelier.fr", sess.User.Email)
	assert.NotEmpty(t, sess.Tokens.AccessToken)
	assert.NotEqual(t, "s3cret-pass", sess.User.PasswordHash)

	_, err = svc.SignUp(ctx, &SignUpInput{Email: "claire@atelier.fr", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.SignIn(ctx, "claire@atelier.fr", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "nobody@atelier.fr", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	again, err := svc.SignIn(ctx, "CLAIRE@atelier.fr", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, again.User.ID)
}

func TestSignUp_WeakPassword(t *testing.T) {
	svc, _ := setupAuth(t)
	_, err := svc.SignUp(context.Background(), &SignUpInput{Email: "a@b.fr", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestRefreshRotatesAndSignOutRevokes(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, &SignUpInput{Email: "marc@atelier.fr", Password: "s3cret-pass"})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	// the old refresh token is single-use
	_, err = svc.Refresh(ctx, sess.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.SignOut(ctx, rotated.Tokens.RefreshToken))
	_, err = svc.Refresh(ctx, rotated.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// access tokens are not accepted as refresh tokens
	_, err = svc.Refresh(ctx, rotated.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUpdateUser(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()

	first, err := svc.SignUp(ctx, &SignUpInput{Email: "one@atelier.fr", Password: "s3cret-pass"})
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, &SignUpInput{Email: "two@atelier.fr", Password: "s3cret-pass"})
	require.NoError(t, err)

	name := "Camille"
	password := "new-s3cret-pass"
	user, err := svc.UpdateUser(ctx, first.User.ID, &UpdateUserInput{Name: &name, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "Camille", user.Name)

	_, err = svc.SignIn(ctx, "one@atelier.fr", password)
	require.NoError(t, err)

	taken := "two@atelier.fr"
	_, err = svc.UpdateUser(ctx, first.User.ID, &UpdateUserInput{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.UpdateUser(ctx, "missing", &UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "jti-1", "user-1", time.Minute))
	userID, err := store.Lookup(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	now = now.Add(2 * time.Minute)
	_, err = store.Lookup(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdateUser_PasswordChangeRevokesSessions(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, &SignUpInput{Email: "iris@atelier.fr", Password: "s3cret-pass"})
	require.NoError(t, err)
	other, err := svc.SignIn(ctx, "iris@atelier.fr", "s3cret-pass")
	require.NoError(t, err)

	name := "Iris"
	_, err = svc.UpdateUser(ctx, sess.User.ID, &UpdateUserInput{Name: &name})
	require.NoError(t, err)
	refreshed, err := svc.Refresh(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err, "profile changes keep sessions")

	password := "brand-new-pass"
	_, err = svc.UpdateUser(ctx, sess.User.ID, &UpdateUserInput{Password: &password})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, refreshed.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Refresh(ctx, other.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUpdateUser_EmailLookupErrorPropagates(t *testing.T) {
	svc, _ := setupAuth(t)
	ctx := context.Background()

	sess, err := svc.SignUp(ctx, &SignUpInput{Email: "noe@atelier.fr", Password: "s3cret-pass"})
	require.NoError(t, err)

	boom := errors.New("connection reset")
	queries := 0
	require.NoError(t, svc.users.db.Callback().Query().Before("gorm:query").Register("test:fail_email_lookup", func(tx *gorm.DB) {
		queries++
		// FindByID first, then the email lookup
		if queries == 2 {
			tx.AddError(boom)
		}
	}))

	email := "noe.new@atelier.fr"
	_, err = svc.UpdateUser(ctx, sess.User.ID, &UpdateUserInput{Email: &email})
	require.ErrorIs(t, err, boom)

	user, err := svc.GetUser(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "noe@atelier.fr", user.Email)
}

func TestMemorySessionStore_DeleteUser(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "jti-1", "user-1", time.Hour))
	require.NoError(t, store.Save(ctx, "jti-2", "user-1", time.Hour))
	require.NoError(t, store.Save(ctx, "jti-3", "user-2", time.Hour))

	require.NoError(t, store.DeleteUser(ctx, "user-1"))

	_, err := store.Lookup(ctx, "jti-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Lookup(ctx, "jti-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	userID, err := store.Lookup(ctx, "jti-3")
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)
}
