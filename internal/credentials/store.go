// Package credentials stores mailbox secrets encrypted at rest and hands
// the connector a decrypted credential on demand. Lookup is an injected
// capability; nothing in the ingestion core reaches for a global store.
package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"github.com/LeviWoodfall/Regia/internal/database/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

var (
	// ErrCredentialNotFound indicates no credential of the requested kind exists
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrEncryptionFailed indicates secret encryption failed
	ErrEncryptionFailed = errors.New("credential encryption failed")
	// ErrDecryptionFailed indicates secret decryption failed
	ErrDecryptionFailed = errors.New("credential decryption failed")
	// ErrNoRefreshToken indicates an expired token cannot be refreshed
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// Credential is a decrypted secret handed to the connector. Exactly one of
// Password or AccessToken is set, depending on the kind requested.
type Credential struct {
	Kind         models.CredentialKind
	Password     string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
}

// Lookup is the capability the connector and orchestrator depend on.
type Lookup interface {
	Get(account *models.MailAccount, kind models.CredentialKind) (*Credential, error)
}

// Store is the gorm-backed Lookup implementation with AES-256-GCM at rest.
type Store struct {
	db  *gorm.DB
	key []byte // 32 bytes for AES-256
}

// NewStore creates a new credential Store instance
func NewStore(db *gorm.DB, encryptionKey []byte) *Store {
	key := make([]byte, 32)
	copy(key, encryptionKey)
	return &Store{db: db, key: key}
}

// encrypt encrypts a secret using AES-256-GCM
func (s *Store) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a secret using AES-256-GCM
func (s *Store) decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrDecryptionFailed
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// SetAppPassword stores or replaces an account's app password.
func (s *Store) SetAppPassword(accountID uint, password string) error {
	encrypted, err := s.encrypt(password)
	if err != nil {
		return err
	}

	cred := models.Credential{
		AccountID:         accountID,
		Kind:              string(models.CredentialAppPassword),
		PasswordEncrypted: encrypted,
	}

	var existing models.Credential
	err = s.db.Where("account_id = ? AND kind = ?", accountID, cred.Kind).First(&existing).Error
	if err == nil {
		cred.ID = existing.ID
		return s.db.Save(&cred).Error
	}
	return s.db.Create(&cred).Error
}

// SetOAuthTokens stores or replaces an account's OAuth2 token pair.
func (s *Store) SetOAuthTokens(accountID uint, accessToken, refreshToken string, expiry time.Time) error {
	accessEnc, err := s.encrypt(accessToken)
	if err != nil {
		return err
	}
	refreshEnc, err := s.encrypt(refreshToken)
	if err != nil {
		return err
	}

	cred := models.Credential{
		AccountID:             accountID,
		Kind:                  string(models.CredentialOAuth2),
		AccessTokenEncrypted:  accessEnc,
		RefreshTokenEncrypted: refreshEnc,
		TokenExpiry:           expiry,
	}

	var existing models.Credential
	err = s.db.Where("account_id = ? AND kind = ?", accountID, cred.Kind).First(&existing).Error
	if err == nil {
		cred.ID = existing.ID
		// Keep the old refresh token when the provider omits a new one.
		if refreshToken == "" {
			cred.RefreshTokenEncrypted = existing.RefreshTokenEncrypted
		}
		return s.db.Save(&cred).Error
	}
	return s.db.Create(&cred).Error
}

// Get fetches and decrypts the credential for an account. For OAuth2 kinds
// an expired access token is refreshed before it is returned; a missing
// credential is a hard failure the caller must treat as fatal for the run.
func (s *Store) Get(account *models.MailAccount, kind models.CredentialKind) (*Credential, error) {
	var row models.Credential
	if err := s.db.Where("account_id = ? AND kind = ?", account.ID, string(kind)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, err
	}

	cred := &Credential{Kind: kind, TokenExpiry: row.TokenExpiry}

	var err error
	switch kind {
	case models.CredentialAppPassword:
		cred.Password, err = s.decrypt(row.PasswordEncrypted)
		if err != nil {
			return nil, err
		}
		if cred.Password == "" {
			return nil, ErrCredentialNotFound
		}
	case models.CredentialOAuth2:
		cred.AccessToken, err = s.decrypt(row.AccessTokenEncrypted)
		if err != nil {
			return nil, err
		}
		cred.RefreshToken, err = s.decrypt(row.RefreshTokenEncrypted)
		if err != nil {
			return nil, err
		}
		if cred.AccessToken == "" && cred.RefreshToken == "" {
			return nil, ErrCredentialNotFound
		}
		if !row.TokenExpiry.IsZero() && row.TokenExpiry.Before(time.Now()) {
			if err := s.refreshOAuthToken(account, cred); err != nil {
				return nil, err
			}
		}
	default:
		return nil, ErrCredentialNotFound
	}

	return cred, nil
}

// refreshOAuthToken exchanges the refresh token for a fresh access token
// and persists the result.
func (s *Store) refreshOAuthToken(account *models.MailAccount, cred *Credential) error {
	if cred.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	conf := &oauth2.Config{
		ClientID:     account.OAuthClientID,
		ClientSecret: account.OAuthClientSecret,
		Endpoint:     google.Endpoint,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return err
	}

	cred.AccessToken = token.AccessToken
	cred.TokenExpiry = token.Expiry
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}

	return s.SetOAuthTokens(account.ID, cred.AccessToken, token.RefreshToken, token.Expiry)
}
