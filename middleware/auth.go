package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/apperr"
	"github.com/audiodrop/musicbox/models"
	"github.com/audiodrop/musicbox/utils"
)

const (
	// ContextUserKey stores the authenticated *models.User inside Gin context.
	ContextUserKey = "user"
	// SessionUserIDKey is the session key holding the logged-in user's ID.
	SessionUserIDKey = "user_id"
	// SessionNextKey is the session key holding the post-login redirect target.
	SessionNextKey = "next"
	// TokenCookieName is the cookie carrying a bearer token for browser clients.
	TokenCookieName = "token"
	// TokenQueryParam is the query parameter carrying a bearer token.
	TokenQueryParam = "token"
)

// TokenResolver turns a bearer token or a session user ID into a user.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// TokenRequired authenticates the request with a bearer token. Nothing after it runs for a
// missing or invalid token.
func TokenRequired(resolver TokenResolver, log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := BearerToken(ctx)
		if token == "" {
			utils.AbortError(ctx, http.StatusUnauthorized, 40103, "authorization required")
			return
		}
		user, err := resolver.Resolve(ctx.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, apperr.ErrAuth) {
				log.Error("resolve token", zap.Error(err))
			}
			status, code, msg := utils.Classify(err)
			utils.AbortError(ctx, status, code, msg)
			return
		}
		ctx.Set(ContextUserKey, user)
		ctx.Next()
	}
}

// SessionRequired authenticates the request with the browser session. Anonymous browsers are
// redirected to the login page with the requested path as the next target.
func SessionRequired(resolver TokenResolver, log *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		session := sessions.Default(ctx)
		id, _ := session.Get(SessionUserIDKey).(uint)
		if id == 0 {
			redirectToLogin(ctx)
			return
		}
		user, err := resolver.FindUser(ctx.Request.Context(), id)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				log.Error("load session user", zap.Uint("user_id", id), zap.Error(err))
				utils.AbortError(ctx, http.StatusInternalServerError, 50000, "internal error")
				return
			}
			session.Delete(SessionUserIDKey)
			_ = session.Save()
			redirectToLogin(ctx)
			return
		}
		ctx.Set(ContextUserKey, user)
		ctx.Next()
	}
}

// SessionOptional loads the session user when there is one and never rejects the request.
func SessionOptional(resolver TokenResolver) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if id, _ := sessions.Default(ctx).Get(SessionUserIDKey).(uint); id != 0 {
			if user, err := resolver.FindUser(ctx.Request.Context(), id); err == nil {
				ctx.Set(ContextUserKey, user)
			}
		}
		ctx.Next()
	}
}

func redirectToLogin(ctx *gin.Context) {
	ctx.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(ctx.Request.URL.Path))
	ctx.Abort()
}

// LiftQueryToken moves a token query parameter into the Authorization header, keeping it out of
// access logs. An Authorization header already present wins; the parameter is dropped either way.
func LiftQueryToken() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		q := ctx.Request.URL.Query()
		if tok := q.Get(TokenQueryParam); tok != "" {
			if ctx.GetHeader("Authorization") == "" {
				ctx.Request.Header.Set("Authorization", "Bearer "+tok)
			}
			q.Del(TokenQueryParam)
			ctx.Request.URL.RawQuery = q.Encode()
		}
		ctx.Next()
	}
}

// BearerToken extracts a token from the Authorization header ("Bearer" or "JWT" scheme), then the
// token query parameter, then the token cookie.
func BearerToken(ctx *gin.Context) string {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && (strings.EqualFold(parts[0], "Bearer") || strings.EqualFold(parts[0], "JWT")) {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if t := ctx.Query(TokenQueryParam); t != "" {
		return t
	}
	if c, err := ctx.Cookie(TokenCookieName); err == nil {
		return c
	}
	return ""
}

// CurrentIdentity returns the caller's identity, or models.Anonymous.
func CurrentIdentity(ctx *gin.Context) models.Identity {
	if u := CurrentUser(ctx); u != nil {
		return u
	}
	return models.Anonymous
}

// CurrentUser returns the authenticated user set by TokenRequired or SessionRequired.
func CurrentUser(ctx *gin.Context) *models.User {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
