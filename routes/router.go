package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/app"
	"github.com/audiodrop/musicbox/controllers"
	"github.com/audiodrop/musicbox/middleware"
	"github.com/audiodrop/musicbox/utils"
	"github.com/audiodrop/musicbox/web"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(a *app.App) (*gin.Engine, error) {
	cfg := a.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	accessLog := a.Log.Named("gin")
	if cfg.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			a.Log.Warn("gin log file unavailable, logging requests to the main logger", zap.Error(err))
		} else {
			accessLog = gl
		}
	}
	r.Use(middleware.LiftQueryToken())
	r.Use(ginzap.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Range"},
		ExposeHeaders:    []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.Sessions(a.Sessions))
	r.Use(middleware.BodyLimit(cfg.MaxContentLength))
	r.MaxMultipartMemory = 32 << 20

	tmpl, err := web.Templates()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(tmpl)

	authController := controllers.NewAuthController(a.Authn, a.Users, a.Log.Named("auth"))
	musicController := controllers.NewMusicController(a.Store, a.Validator, a.Log.Named("music"))
	sessionRequired := middleware.SessionRequired(a.Authn, a.Log)
	tokenRequired := middleware.TokenRequired(a.Authn, a.Log)

	r.GET("/", middleware.SessionOptional(a.Authn), controllers.Index)
	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	r.GET("/login", authController.LoginForm)
	r.POST("/login", authController.Login)
	r.GET("/logout", sessionRequired, authController.Logout)

	r.GET("/upload/music", sessionRequired, musicController.UploadForm)
	r.POST("/upload/music", sessionRequired, musicController.Upload)
	r.GET("/music/:id", tokenRequired, musicController.Serve)

	authGroup := r.Group("/auth")
	authGroup.POST("/token", authController.Token)
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/logout", tokenRequired, authController.RevokeToken)
	authGroup.GET("/me", tokenRequired, authController.Me)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r, nil
}
