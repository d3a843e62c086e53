package models

import "time"

type UserRole string

const (
	RoleHR    UserRole = "hr"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == RoleHR || r == RoleAdmin
}

type User struct {
	ID           uint     `gorm:"primaryKey"`
	Email        string   `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null;default:hr"`
	Active       bool     `gorm:"not null;default:true"`

	// nil until the recovery answer is configured
	RecoveryAnswerHash *string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Notes []Note `gorm:"foreignKey:AuthorID;constraint:OnDelete:RESTRICT"`
}

func (u *User) RecoveryConfigured() bool {
	return u.RecoveryAnswerHash != nil && *u.RecoveryAnswerHash != ""
}
