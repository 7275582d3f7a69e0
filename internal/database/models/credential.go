package models

import (
	"time"
)

// CredentialKind selects which secret an account authenticates with.
type CredentialKind string

const (
	// CredentialOAuth2 holds access/refresh tokens for XOAUTH2
	CredentialOAuth2 CredentialKind = "oauth2_tokens"
	// CredentialAppPassword holds a plain-login app password
	CredentialAppPassword CredentialKind = "app_password"
)

// Credential stores an account secret, encrypted at rest with AES-256-GCM.
// The plaintext never leaves the credential store's accessor methods.
type Credential struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AccountID uint   `gorm:"not null;uniqueIndex:idx_account_kind" json:"account_id"`
	Kind      string `gorm:"size:30;not null;uniqueIndex:idx_account_kind" json:"kind"`

	PasswordEncrypted     string    `gorm:"size:1000" json:"-"`
	AccessTokenEncrypted  string    `gorm:"size:4000" json:"-"`
	RefreshTokenEncrypted string    `gorm:"size:4000" json:"-"`
	TokenExpiry           time.Time `json:"token_expiry"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
