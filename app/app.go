// Package app assembles the long-lived services shared by every request.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-contrib/sessions"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/audiodrop/musicbox/audio"
	"github.com/audiodrop/musicbox/auth"
	"github.com/audiodrop/musicbox/config"
	"github.com/audiodrop/musicbox/middleware"
	"github.com/audiodrop/musicbox/models"
	"github.com/audiodrop/musicbox/repository"
	"github.com/audiodrop/musicbox/storage"
	"github.com/audiodrop/musicbox/utils"
)

// App is the application context handed to the router. It is built once at startup.
type App struct {
	Config    config.AppConfig
	Log       *zap.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	Users     *repository.UserStore
	Authn     *auth.Authenticator
	Validator *audio.Validator
	Store     *storage.Store
	Sessions  sessions.Store
}

// Option tunes New.
type Option func(*options)

type options struct {
	passwordCost int
}

// WithPasswordCost sets the bcrypt cost for newly stored passwords.
func WithPasswordCost(cost int) Option {
	return func(o *options) { o.passwordCost = cost }
}

// New opens the database, seeds the configured account and builds the auth and storage services.
func New(ctx context.Context, cfg config.AppConfig, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := config.OpenDatabase(cfg, log, &models.User{})
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Log: log, DB: db}

	a.Users = repository.NewUserStore(db, o.passwordCost)
	if cfg.SeedEmail != "" && cfg.SeedPassword != "" {
		created, err := a.Users.EnsureUser(ctx, cfg.SeedEmail, cfg.SeedPassword)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seed user: %w", err)
		}
		if created {
			log.Info("seeded user", zap.String("email", cfg.SeedEmail))
		}
	}

	a.Redis = utils.NewRedis(cfg, log)
	blacklist := utils.NewTokenBlacklist(a.Redis, log.Named("blacklist"))
	a.Authn, err = auth.NewAuthenticator(a.Users, cfg.SecretKey, cfg.TokenTTL(), blacklist, log.Named("auth"))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Validator = audio.NewValidator(cfg.AllowedExtensions, log.Named("audio"))
	a.Store, err = storage.NewStore(cfg.UploadDir, cfg.HashAlgorithm, a.Validator, log.Named("storage"))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Sessions = middleware.NewSessionStore(cfg, log)
	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
