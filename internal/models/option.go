package models

import (
	"time"
)

// Option stores a single key-value setting for the site
type Option struct {
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for Option
func (Option) TableName() string {
	return "options"
}

// KeyPrefix namespaces every option written by devassist
const KeyPrefix = "devassist"

// Common option keys
const (
	OptionSchemaVersion = KeyPrefix + "_schema_version"
	OptionInitializedAt = KeyPrefix + "_initialized_at"
	OptionSiteRoot      = KeyPrefix + "_site_root"
	OptionSiteURL       = KeyPrefix + "_site_url"
	OptionSecretBackend = KeyPrefix + "_secret_backend"
	OptionActive        = KeyPrefix + "_active"
	OptionEnvironment   = KeyPrefix + "_environment_type"
)

// Secret backend constants
const (
	SecretBackendOption  = "option"  // Secret kept in the options table
	SecretBackendKeyring = "keyring" // Secret kept in the system keyring
)

// Boolean option values
const (
	Yes = "yes"
	No  = "no"
)
