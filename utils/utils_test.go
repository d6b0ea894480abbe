package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/audiodrop/musicbox/apperr"
)

var testSecret = []byte("test-secret-for-utils")

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPasswordCost("PASSWORD", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "PASSWORD", hash)
	assert.True(t, CheckPassword(hash, "PASSWORD"))
	assert.False(t, CheckPassword(hash, "WRONG"))
	assert.False(t, CheckPassword("not-a-hash", "PASSWORD"))

	_, err = HashPasswordCost("", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestGenerateAndParseToken(t *testing.T) {
	token, claims, err := GenerateToken(testSecret, 7, "alice@example.com", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), parsed.UserID)
	assert.Equal(t, "alice@example.com", parsed.Email)
	assert.Equal(t, claims.ID, parsed.ID)

	other, _, err := GenerateToken(testSecret, 7, "alice@example.com", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestParseTokenRejectsTamperedAndForeign(t *testing.T) {
	token, _, err := GenerateToken(testSecret, 1, "a@example.com", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, token+"x")
	assert.Error(t, err)

	_, err = ParseToken([]byte("another-secret"), token)
	assert.Error(t, err)

	_, err = ParseToken(testSecret, "garbage")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, _, err := GenerateToken(testSecret, 1, "a@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, token)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestTokenBlacklistInMemory(t *testing.T) {
	bl := NewTokenBlacklist(nil, zap.NewNop())
	ctx := context.Background()

	bl.Add(ctx, "jti-1", time.Now().Add(time.Hour))
	assert.True(t, bl.Contains(ctx, "jti-1"))
	assert.False(t, bl.Contains(ctx, "jti-2"))

	bl.Add(ctx, "jti-old", time.Now().Add(-time.Minute))
	assert.False(t, bl.Contains(ctx, "jti-old"))

	now := time.Now()
	bl.now = func() time.Time { return now.Add(2 * time.Hour) }
	assert.False(t, bl.Contains(ctx, "jti-1"))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.ErrTokenExpired, http.StatusUnauthorized},
		{apperr.ErrTokenInvalid, http.StatusUnauthorized},
		{apperr.ErrInvalidCredentials, http.StatusUnauthorized},
		{apperr.ErrInvalidName, http.StatusBadRequest},
		{apperr.ErrInvalidContent, http.StatusBadRequest},
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.Storage("write", "/x", errors.New("disk full")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _, msg := Classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.NotContains(t, msg, "disk full")
	}
}

func TestRedactAuthorization(t *testing.T) {
	dump := []byte("GET /music/x HTTP/1.1\r\nAuthorization: Bearer abc\r\nCookie: token=abc\r\nAccept: */*\r\n\r\n")
	out := string(redactAuthorization(dump))
	assert.NotContains(t, out, "abc")
	assert.Contains(t, out, "Accept: */*")
}

func TestRedactRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := RedactRequests(zap.New(core))

	dump := "GET / HTTP/1.1\r\nAuthorization: Bearer s3cret\r\nHost: x\r\n\r\n"
	log.Error("panic", zap.String("request", dump), zap.String("other", "Authorization: keep"))
	log.With(zap.ByteString("request", []byte(dump))).Info("with")

	entries := logs.All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.NotContains(t, first["request"], "s3cret")
	assert.Contains(t, first["request"], "Host: x")
	assert.Equal(t, "Authorization: keep", first["other"])
	assert.NotContains(t, entries[1].ContextMap()["request"], "s3cret")
}

func TestRecoveryWithZapHidesCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(RecoveryWithZap(zap.New(core), false))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	req.AddCookie(&http.Cookie{Name: "token", Value: "s3cret"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotZero(t, logs.Len())
	for _, e := range logs.All() {
		for _, v := range e.ContextMap() {
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, "s3cret")
			}
		}
	}
}

func TestTokenBlacklistFallsBackWhenRedisIsDown(t *testing.T) {
	rc := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })
	core, logs := observer.New(zapcore.WarnLevel)
	bl := NewTokenBlacklist(rc, zap.New(core))

	bl.Add(context.Background(), "jti-1", time.Now().Add(time.Hour))
	assert.True(t, bl.Contains(context.Background(), "jti-1"))
	assert.False(t, bl.Contains(context.Background(), "jti-2"))
	assert.NotZero(t, logs.FilterMessage("redis blacklist set failed, keeping revocation in memory").Len())
}
