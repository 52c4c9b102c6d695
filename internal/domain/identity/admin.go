package identity

import (
	"strings"
	"time"

	"github.com/flora/backend/internal/domain/shared"
)

// AdminUser is a back-office operator signing in with an admin token
type AdminUser struct {
	shared.BaseAggregateRoot
	Email        string `gorm:"type:varchar(200);not null;uniqueIndex"`
	Name         string `gorm:"type:varchar(200);not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`
	Active       bool   `gorm:"not null"`
	LastLoginAt  *time.Time
}

// TableName returns the table name for GORM
func (AdminUser) TableName() string {
	return "admin_users"
}

// NewAdminUser creates an active admin with a hashed password
func NewAdminUser(email, name, password string) (*AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}
	a := &AdminUser{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Email:             email,
		Name:              name,
		Active:            true,
	}
	if err := a.SetPassword(password); err != nil {
		return nil, err
	}
	return a, nil
}

// SetPassword hashes and stores a new password
func (a *AdminUser) SetPassword(password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}
	a.PasswordHash = hash
	a.UpdatedAt = time.Now()
	return nil
}

// VerifyPassword checks a login attempt
func (a *AdminUser) VerifyPassword(password string) bool {
	return verifyPassword(a.PasswordHash, password)
}

// RecordLogin stores the login time
func (a *AdminUser) RecordLogin() {
	now := time.Now()
	a.LastLoginAt = &now
}

// Deactivate revokes access
func (a *AdminUser) Deactivate() {
	a.Active = false
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}
