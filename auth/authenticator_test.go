package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/audiodrop/musicbox/apperr"
	"github.com/audiodrop/musicbox/models"
	"github.com/audiodrop/musicbox/utils"
)

type memUsers struct {
	byID map[uint]*models.User
}

func newMemUsers(t *testing.T, emails ...string) *memUsers {
	t.Helper()
	m := &memUsers{byID: map[uint]*models.User{}}
	for i, email := range emails {
		hash, err := utils.HashPasswordCost("PASSWORD", bcrypt.MinCost)
		require.NoError(t, err)
		id := uint(i + 1)
		m.byID[id] = &models.User{ID: id, Email: email, PasswordHash: hash}
	}
	return m
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *memUsers) VerifyPassword(user *models.User, password string) bool {
	return utils.CheckPassword(user.PasswordHash, password)
}

func newTestAuthenticator(t *testing.T, users UserFinder, ttl time.Duration) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(users, "test-secret", ttl, utils.NewTokenBlacklist(nil, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	return a
}

func TestLogin(t *testing.T) {
	users := newMemUsers(t, "ya.androidapp@gmail.com")
	a := newTestAuthenticator(t, users, time.Hour)
	ctx := context.Background()

	user, err := a.Login(ctx, "ya.androidapp@gmail.com", "PASSWORD")
	require.NoError(t, err)
	assert.True(t, user.IsAuthenticated())

	_, wrongPassword := a.Login(ctx, "ya.androidapp@gmail.com", "WRONG")
	_, unknownEmail := a.Login(ctx, "nobody@example.com", "PASSWORD")
	assert.ErrorIs(t, wrongPassword, apperr.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, apperr.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator(newMemUsers(t), "", time.Hour, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestIssueAndResolve(t *testing.T) {
	users := newMemUsers(t, "a@example.com")
	a := newTestAuthenticator(t, users, time.Hour)
	ctx := context.Background()

	token, exp, err := a.IssueToken(users.byID[1])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	user, err := a.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), user.GetID())

	_, _, err = a.IssueToken(&models.User{})
	assert.ErrorIs(t, err, apperr.ErrTokenInvalid)
}

func TestResolveRejects(t *testing.T) {
	users := newMemUsers(t, "a@example.com")
	a := newTestAuthenticator(t, users, time.Hour)
	ctx := context.Background()

	_, err := a.Resolve(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrTokenInvalid)

	_, err = a.Resolve(ctx, "not.a.token")
	assert.ErrorIs(t, err, apperr.ErrTokenInvalid)

	token, _, err := utils.GenerateToken([]byte("test-secret"), 1, "a@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = a.Resolve(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrTokenExpired)

	// signed correctly, but the user no longer exists
	orphan, _, err := a.IssueToken(&models.User{ID: 99, Email: "gone@example.com"})
	require.NoError(t, err)
	_, err = a.Resolve(ctx, orphan)
	assert.ErrorIs(t, err, apperr.ErrTokenInvalid)
}

func TestLogoutRevokesAndIsIdempotent(t *testing.T) {
	users := newMemUsers(t, "a@example.com")
	a := newTestAuthenticator(t, users, time.Hour)
	ctx := context.Background()

	token, _, err := a.IssueToken(users.byID[1])
	require.NoError(t, err)
	other, _, err := a.IssueToken(users.byID[1])
	require.NoError(t, err)

	a.Logout(ctx, token)
	a.Logout(ctx, token)
	a.Logout(ctx, "garbage")
	a.Logout(ctx, "")

	_, err = a.Resolve(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrTokenInvalid)

	_, err = a.Resolve(ctx, other)
	assert.NoError(t, err)
}

func TestSafeRedirect(t *testing.T) {
	cases := map[string]string{
		"":                           "/",
		"/":                          "/",
		"/upload/music":              "/upload/music",
		"/upload/music?x=1":          "/upload/music?x=1",
		"https://evil.example/":      "/",
		"http://localhost/x":         "/",
		"//evil.example/path":        "/",
		"/\\evil.example":            "/",
		"javascript:alert(1)":        "/",
		"upload/music":               "/",
		"/ok\r\nSet-Cookie: a=b":     "/",
		"mailto:someone@example.com": "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeRedirect(in), "input %q", in)
	}
}
