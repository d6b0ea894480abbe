// Package repository persists user credentials.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/audiodrop/musicbox/apperr"
	"github.com/audiodrop/musicbox/models"
	"github.com/audiodrop/musicbox/utils"
)

// UserStore stores users and answers password checks. Email uniqueness is enforced by the
// users.email unique index, not by a read-then-write check.
type UserStore struct {
	db   *gorm.DB
	cost int
}

// NewUserStore creates a UserStore hashing passwords at the given bcrypt cost (0 means default).
func NewUserStore(db *gorm.DB, cost int) *UserStore {
	return &UserStore{db: db, cost: cost}
}

// CreateUser stores a new user with a bcrypt hash of password.
func (s *UserStore) CreateUser(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperr.ErrValidation)
	}

	var (
		hash string
		err  error
	)
	if s.cost > 0 {
		hash, err = utils.HashPasswordCost(password, s.cost)
	} else {
		hash, err = utils.HashPassword(password)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Email: email, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("user %s: %w", email, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// FindByEmail looks up a user by exact email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	// MySQL's default collation compares case-insensitively; emails are case-sensitive as stored.
	if user.Email != email {
		return nil, apperr.ErrNotFound
	}
	return &user, nil
}

// FindByID looks up a user by primary key.
func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	if id == 0 {
		return nil, apperr.ErrNotFound
	}
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// VerifyPassword reports whether password matches the user's stored hash.
func (s *UserStore) VerifyPassword(user *models.User, password string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return utils.CheckPassword(user.PasswordHash, password)
}

// EnsureUser creates the account when no user with that email exists. Returns true when it created one.
func (s *UserStore) EnsureUser(ctx context.Context, email, password string) (bool, error) {
	if _, err := s.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	if _, err := s.CreateUser(ctx, email, password); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
