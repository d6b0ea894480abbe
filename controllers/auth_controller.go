package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/apperr"
	"github.com/audiodrop/musicbox/auth"
	"github.com/audiodrop/musicbox/middleware"
	"github.com/audiodrop/musicbox/models"
	"github.com/audiodrop/musicbox/repository"
	"github.com/audiodrop/musicbox/utils"
)

// AuthController handles login, logout, registration and token issuance.
type AuthController struct {
	authn *auth.Authenticator
	users *repository.UserStore
	log   *zap.Logger
}

// NewAuthController creates an AuthController.
func NewAuthController(authn *auth.Authenticator, users *repository.UserStore, log *zap.Logger) *AuthController {
	return &AuthController{authn: authn, users: users, log: log}
}

type credentials struct {
	Email    string `form:"email" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// LoginForm renders the login page and remembers the requested next target in the session.
func (a *AuthController) LoginForm(ctx *gin.Context) {
	session := sessions.Default(ctx)
	if next := ctx.Query(middleware.SessionNextKey); next != "" {
		session.Set(middleware.SessionNextKey, next)
	} else {
		session.Delete(middleware.SessionNextKey)
	}
	if err := session.Save(); err != nil {
		a.log.Error("save session", zap.Error(err))
	}
	ctx.HTML(http.StatusOK, "login.html", gin.H{"Error": ""})
}

// Login validates form credentials, starts a browser session and redirects to the remembered target.
func (a *AuthController) Login(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBind(&req); err != nil {
		ctx.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": "Invalid email or password."})
		return
	}

	user, err := a.authn.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, apperr.ErrAuth) {
			a.log.Error("login", zap.Error(err))
			ctx.HTML(http.StatusInternalServerError, "login.html", gin.H{"Error": "Login is unavailable, try again later."})
			return
		}
		ctx.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": "Invalid email or password."})
		return
	}

	session := sessions.Default(ctx)
	next, _ := session.Get(middleware.SessionNextKey).(string)
	session.Delete(middleware.SessionNextKey)
	session.Set(middleware.SessionUserIDKey, user.ID)
	if err := session.Save(); err != nil {
		a.log.Error("save session", zap.Error(err))
		ctx.HTML(http.StatusInternalServerError, "login.html", gin.H{"Error": "Login is unavailable, try again later."})
		return
	}

	// the token cookie lets <audio> elements reach the bearer-protected stream endpoint
	if token, exp, err := a.authn.IssueToken(user); err == nil {
		setTokenCookie(ctx, token, int(time.Until(exp).Seconds()))
	} else {
		a.log.Error("issue token", zap.Error(err))
	}

	ctx.Redirect(http.StatusFound, auth.SafeRedirect(next))
}

// Logout ends the browser session and revokes the token cookie.
func (a *AuthController) Logout(ctx *gin.Context) {
	if token, err := ctx.Cookie(middleware.TokenCookieName); err == nil {
		a.authn.Logout(ctx.Request.Context(), token)
	}

	session := sessions.Default(ctx)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	if err := session.Save(); err != nil {
		a.log.Error("clear session", zap.Error(err))
	}
	setTokenCookie(ctx, "", -1)
	ctx.Redirect(http.StatusFound, auth.RootPath)
}

// Token exchanges email and password for a bearer token.
func (a *AuthController) Token(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40100, "invalid email or password")
		return
	}

	user, err := a.authn.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, apperr.ErrAuth) {
			a.log.Error("token login", zap.Error(err))
		}
		utils.ErrorFrom(ctx, err)
		return
	}

	token, exp, err := a.authn.IssueToken(user)
	if err != nil {
		a.log.Error("issue token", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   exp.UTC().Format(time.RFC3339),
	})
}

// RevokeToken invalidates the presented bearer token.
func (a *AuthController) RevokeToken(ctx *gin.Context) {
	a.authn.Logout(ctx.Request.Context(), middleware.BearerToken(ctx))
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Register creates an account.
func (a *AuthController) Register(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !strings.Contains(req.Email, "@") || len(req.Email) > 255 {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid email")
		return
	}
	if len(req.Password) < 6 || len(req.Password) > 72 {
		utils.Error(ctx, http.StatusBadRequest, 40005, "password must be 6-72 bytes")
		return
	}

	user, err := a.users.CreateUser(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, apperr.ErrConflict) {
			a.log.Error("register", zap.Error(err))
		}
		utils.ErrorFrom(ctx, err)
		return
	}
	a.log.Info("user registered", zap.Uint("user_id", user.ID))
	ctx.JSON(http.StatusCreated, sanitizeUserResponse(user))
}

// Me returns the caller's account.
func (a *AuthController) Me(ctx *gin.Context) {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	utils.Success(ctx, sanitizeUserResponse(user))
}

func setTokenCookie(ctx *gin.Context, token string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(middleware.TokenCookieName, token, maxAge, "/", "", ctx.Request.TLS != nil, true)
}

func sanitizeUserResponse(user *models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	}
}
