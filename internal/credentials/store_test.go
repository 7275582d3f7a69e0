package credentials

import (
	"os"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/LeviWoodfall/Regia/internal/database/models"
)

func setupCredentialTestDB(t *testing.T) (*gorm.DB, *models.MailAccount, func()) {
	tmpFile, err := os.CreateTemp("", "credential_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	db, err := gorm.Open(sqlite.Open(tmpFile.Name()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to open database: %v", err)
	}

	err = db.AutoMigrate(&models.MailAccount{}, &models.Credential{})
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("Failed to migrate: %v", err)
	}

	account := &models.MailAccount{Email: "user@example.com", IMAPHost: "imap.example.com"}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.Remove(tmpFile.Name())
	}

	return db, account, cleanup
}

func testKey(seed byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = seed
	}
	return key
}

func TestStore_AppPasswordRoundtrip(t *testing.T) {
	db, account, cleanup := setupCredentialTestDB(t)
	defer cleanup()

	store := NewStore(db, testKey(1))
	require.NoError(t, store.SetAppPassword(account.ID, "hunter2-app-password"))

	cred, err := store.Get(account, models.CredentialAppPassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter2-app-password", cred.Password)

	// The row on disk never holds the plaintext.
	var row models.Credential
	require.NoError(t, db.Where("account_id = ?", account.ID).First(&row).Error)
	assert.NotEmpty(t, row.PasswordEncrypted)
	assert.NotContains(t, row.PasswordEncrypted, "hunter2")
}

func TestStore_SetAppPasswordReplaces(t *testing.T) {
	db, account, cleanup := setupCredentialTestDB(t)
	defer cleanup()

	store := NewStore(db, testKey(1))
	require.NoError(t, store.SetAppPassword(account.ID, "first"))
	require.NoError(t, store.SetAppPassword(account.ID, "second"))

	cred, err := store.Get(account, models.CredentialAppPassword)
	require.NoError(t, err)
	assert.Equal(t, "second", cred.Password)

	var count int64
	db.Model(&models.Credential{}).Where("account_id = ?", account.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestStore_MissingCredential(t *testing.T) {
	db, account, cleanup := setupCredentialTestDB(t)
	defer cleanup()

	store := NewStore(db, testKey(1))
	_, err := store.Get(account, models.CredentialAppPassword)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestStore_WrongKeyFailsDecryption(t *testing.T) {
	db, account, cleanup := setupCredentialTestDB(t)
	defer cleanup()

	require.NoError(t, NewStore(db, testKey(1)).SetAppPassword(account.ID, "secret"))

	_, err := NewStore(db, testKey(2)).Get(account, models.CredentialAppPassword)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestStore_OAuthTokens(t *testing.T) {
	db, account, cleanup := setupCredentialTestDB(t)
	defer cleanup()

	store := NewStore(db, testKey(1))
	expiry := time.Now().Add(time.Hour)
	require.NoError(t, store.SetOAuthTokens(account.ID, "access-token", "refresh-token", expiry))

	cred, err := store.Get(account, models.CredentialOAuth2)
	require.NoError(t, err)
	assert.Equal(t, "access-token", cred.AccessToken)
	assert.Equal(t, "refresh-token", cred.RefreshToken)

	// A token update without a refresh token keeps the stored one.
	require.NoError(t, store.SetOAuthTokens(account.ID, "newer-access", "", time.Now().Add(time.Hour)))
	cred, err = store.Get(account, models.CredentialOAuth2)
	require.NoError(t, err)
	assert.Equal(t, "newer-access", cred.AccessToken)
	assert.Equal(t, "refresh-token", cred.RefreshToken)
}

func TestStore_KindsAreIndependent(t *testing.T) {
	db, account, cleanup := setupCredentialTestDB(t)
	defer cleanup()

	store := NewStore(db, testKey(1))
	require.NoError(t, store.SetAppPassword(account.ID, "password"))

	_, err := store.Get(account, models.CredentialOAuth2)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestProperty_EncryptionRoundtrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	db, account, cleanup := setupCredentialTestDB(t)
	defer cleanup()
	store := NewStore(db, testKey(7))

	passwordGen := gen.SliceOfN(24, gen.Rune()).Map(func(runes []rune) string {
		return string(runes)
	}).SuchThat(func(s string) bool { return s != "" })

	properties.Property("stored_password_decrypts_to_original", prop.ForAll(
		func(password string) bool {
			if err := store.SetAppPassword(account.ID, password); err != nil {
				return false
			}
			cred, err := store.Get(account, models.CredentialAppPassword)
			if err != nil {
				return false
			}
			return cred.Password == password
		},
		passwordGen,
	))

	properties.TestingRun(t)
}
