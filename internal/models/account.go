package models

import (
	"database/sql"
	"time"
)

// Account represents a connected creator account on the external platform
type Account struct {
	ID         int64  `gorm:"primaryKey;autoIncrement;column:id"`
	ExternalID string `gorm:"type:varchar(64);not null;uniqueIndex:pulse_accounts_ux1;column:external_id"`
	Handle     string `gorm:"type:varchar(64);not null;column:handle"`
	// AccountType gates which platform endpoints are available
	// (e.g. "business" exposes follower deltas, "creator" does not)
	AccountType string `gorm:"type:varchar(16);not null;default:'business';column:account_type"`

	// Profile fields refreshed on every sync
	Bio          sql.NullString `gorm:"type:varchar(300);column:bio"`
	ProfileImage string         `gorm:"type:varchar(1024);not null;default:'';column:profile_image"`

	// Cached platform counters (point-in-time, refreshed by sync)
	Followers int64 `gorm:"not null;default:0;column:followers"`
	Following int64 `gorm:"not null;default:0;column:following"`
	PostCount int64 `gorm:"not null;default:0;column:post_count"`

	// Credential reference; the token itself lives in the credential store
	CredentialRef       string    `gorm:"type:varchar(128);not null;default:'';column:credential_ref"`
	CredentialExpiresAt time.Time `gorm:"column:credential_expires_at"`

	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "pulse_accounts"
}
