package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/config"
	"github.com/audiodrop/musicbox/utils"
)

// SessionCookieName is the name of the browser session cookie.
const SessionCookieName = "session"

// NewSessionStore returns a Redis-backed session store when Redis is configured, otherwise a signed
// cookie store. Both are keyed with the application secret.
func NewSessionStore(cfg config.AppConfig, log *zap.Logger) sessions.Store {
	secret := []byte(cfg.SecretKey)
	var store sessions.Store
	if cfg.RedisHost != "" {
		rs, err := redis.NewStore(10, "tcp", utils.RedisAddr(cfg), cfg.RedisPassword, secret)
		if err == nil {
			store = rs
		} else {
			log.Warn("redis session store unavailable, using cookie sessions", zap.Error(err))
		}
	}
	if store == nil {
		store = cookie.NewStore(secret)
	}
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.TokenTTLHours * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

// Sessions installs the session middleware under SessionCookieName.
func Sessions(store sessions.Store) gin.HandlerFunc {
	return sessions.Sessions(SessionCookieName, store)
}
