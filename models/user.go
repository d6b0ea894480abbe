package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account that can log in and upload. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (User) TableName() string { return "users" }

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// IsAuthenticated implements Identity.
func (u *User) IsAuthenticated() bool { return u != nil && u.ID != 0 }

// GetID implements Identity.
func (u *User) GetID() uint {
	if u == nil {
		return 0
	}
	return u.ID
}

func (u *User) String() string {
	if u == nil {
		return "<User nil>"
	}
	return "<User " + u.Email + ">"
}
