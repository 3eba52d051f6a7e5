package models

import (
	"time"
)

// Account roles
const (
	RoleAdministrator = "administrator"
)

// Account is a privileged login managed by the local identity directory
type Account struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Login        string    `gorm:"size:60;uniqueIndex;not null" json:"login"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	Role         string    `gorm:"size:30;default:administrator" json:"role"`
	Email        string    `gorm:"size:100" json:"email,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}
