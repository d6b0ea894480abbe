// Package auth verifies credentials and issues and resolves bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/audiodrop/musicbox/apperr"
	"github.com/audiodrop/musicbox/models"
	"github.com/audiodrop/musicbox/utils"
)

// UserFinder is the part of the credential store the authenticator needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
}

// Authenticator checks credentials and manages bearer tokens.
type Authenticator struct {
	users     UserFinder
	secret    []byte
	ttl       time.Duration
	blacklist *utils.TokenBlacklist
	log       *zap.Logger

	// dummyHash is compared against when the email is unknown so both failure paths cost one bcrypt run.
	dummyHash string
}

// NewAuthenticator creates an Authenticator signing tokens with secret.
func NewAuthenticator(users UserFinder, secret string, ttl time.Duration, blacklist *utils.TokenBlacklist, log *zap.Logger) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	dummy, err := utils.HashPassword("musicbox-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("auth: dummy hash: %w", err)
	}
	return &Authenticator{
		users:     users,
		secret:    []byte(secret),
		ttl:       ttl,
		blacklist: blacklist,
		log:       log,
		dummyHash: dummy,
	}, nil
}

// Login returns the user whose email and password match. Unknown email and wrong password both
// return apperr.ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		utils.CheckPassword(a.dummyHash, password)
		a.log.Info("login rejected")
		return nil, apperr.ErrInvalidCredentials
	}
	if !a.users.VerifyPassword(user, password) {
		a.log.Info("login rejected")
		return nil, apperr.ErrInvalidCredentials
	}
	a.log.Info("login succeeded", zap.Uint("user_id", user.ID))
	return user, nil
}

// IssueToken signs a bearer token for the identity.
func (a *Authenticator) IssueToken(user *models.User) (string, time.Time, error) {
	if !user.IsAuthenticated() {
		return "", time.Time{}, apperr.ErrTokenInvalid
	}
	token, claims, err := utils.GenerateToken(a.secret, user.ID, user.Email, a.ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Resolve validates a bearer token and returns the user it names. The user must still exist.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := a.parse(token)
	if err != nil {
		return nil, err
	}
	if a.blacklist != nil && a.blacklist.Contains(ctx, claims.ID) {
		return nil, apperr.ErrTokenInvalid
	}
	user, err := a.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrTokenInvalid
		}
		return nil, err
	}
	return user, nil
}

// Logout revokes the token. Invalid, expired or already revoked tokens are a no-op.
func (a *Authenticator) Logout(ctx context.Context, token string) {
	if token == "" || a.blacklist == nil {
		return
	}
	claims, err := a.parse(token)
	if err != nil {
		return
	}
	a.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time)
}

// FindUser loads the user behind a session.
func (a *Authenticator) FindUser(ctx context.Context, id uint) (*models.User, error) {
	return a.users.FindByID(ctx, id)
}

func (a *Authenticator) parse(token string) (*utils.Claims, error) {
	if token == "" {
		return nil, apperr.ErrTokenInvalid
	}
	claims, err := utils.ParseToken(a.secret, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.ErrTokenExpired
		}
		return nil, apperr.ErrTokenInvalid
	}
	return claims, nil
}
