package services

import (
	"encoding/json"
	"errors"

	"github.com/LeviWoodfall/Regia/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound indicates the mail account was not found
	ErrAccountNotFound = errors.New("mail account not found")
	// ErrAccountAlreadyExists indicates a mail account with this address already exists
	ErrAccountAlreadyExists = errors.New("mail account already exists")
	// ErrInvalidAccountData indicates invalid account data
	ErrInvalidAccountData = errors.New("invalid account data")
)

// AccountService handles mail account configuration. Secrets are not its
// concern; they live in the credential store.
type AccountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountService instance
func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db}
}

// CreateAccountInput represents the input for creating a mail account
type CreateAccountInput struct {
	Name               string
	Email              string
	IMAPHost           string
	IMAPPort           int
	UseSSL             bool
	AuthMethod         string
	OAuthClientID      string
	OAuthClientSecret  string
	Folders            []string
	SearchCriteria     string
	MaxPerFetch        int
	MaxAgeDays         int
	RequireAttachments bool
	MaxAttachmentMB    int
	DownloadLinks      bool
	PostAction         string
	PostActionFolder   string
}

// CreateAccount creates a new mail account
func (s *AccountService) CreateAccount(input CreateAccountInput) (*models.MailAccount, error) {
	if input.Email == "" || input.IMAPHost == "" {
		return nil, ErrInvalidAccountData
	}

	var existing models.MailAccount
	if err := s.db.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrAccountAlreadyExists
	}

	port := input.IMAPPort
	if port == 0 {
		port = 993
	}
	authMethod := input.AuthMethod
	if authMethod == "" {
		authMethod = string(models.AuthMethodAppPassword)
	}
	criteria := input.SearchCriteria
	if criteria == "" {
		criteria = "UNSEEN"
	}
	maxPerFetch := input.MaxPerFetch
	if maxPerFetch <= 0 {
		maxPerFetch = 50
	}

	folders := input.Folders
	if len(folders) == 0 {
		folders = []string{"INBOX"}
	}
	foldersJSON, err := json.Marshal(folders)
	if err != nil {
		return nil, ErrInvalidAccountData
	}

	account := &models.MailAccount{
		Name:               input.Name,
		Email:              input.Email,
		IMAPHost:           input.IMAPHost,
		IMAPPort:           port,
		UseSSL:             input.UseSSL,
		AuthMethod:         authMethod,
		OAuthClientID:      input.OAuthClientID,
		OAuthClientSecret:  input.OAuthClientSecret,
		Enabled:            true,
		Folders:            string(foldersJSON),
		SearchCriteria:     criteria,
		MaxPerFetch:        maxPerFetch,
		MaxAgeDays:         input.MaxAgeDays,
		RequireAttachments: input.RequireAttachments,
		MaxAttachmentMB:    input.MaxAttachmentMB,
		DownloadLinks:      input.DownloadLinks,
		PostAction:         input.PostAction,
		PostActionFolder:   input.PostActionFolder,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount retrieves an account by ID
func (s *AccountService) GetAccount(id uint) (*models.MailAccount, error) {
	var account models.MailAccount
	if err := s.db.First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByEmail retrieves an account by its address
func (s *AccountService) GetAccountByEmail(email string) (*models.MailAccount, error) {
	var account models.MailAccount
	if err := s.db.Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListAccounts returns all configured accounts
func (s *AccountService) ListAccounts() ([]models.MailAccount, error) {
	var accounts []models.MailAccount
	if err := s.db.Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListEnabledAccounts returns the accounts eligible for ingestion runs
func (s *AccountService) ListEnabledAccounts() ([]models.MailAccount, error) {
	var accounts []models.MailAccount
	if err := s.db.Where("enabled = ?", true).Order("id ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// UpdateAccountInput represents optional account updates
type UpdateAccountInput struct {
	Name               *string
	IMAPHost           *string
	IMAPPort           *int
	UseSSL             *bool
	Folders            []string
	SearchCriteria     *string
	MaxPerFetch        *int
	MaxAgeDays         *int
	RequireAttachments *bool
	MaxAttachmentMB    *int
	DownloadLinks      *bool
	PostAction         *string
	PostActionFolder   *string
}

// UpdateAccount applies the provided fields to an account
func (s *AccountService) UpdateAccount(id uint, input UpdateAccountInput) (*models.MailAccount, error) {
	account, err := s.GetAccount(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		account.Name = *input.Name
	}
	if input.IMAPHost != nil {
		account.IMAPHost = *input.IMAPHost
	}
	if input.IMAPPort != nil {
		account.IMAPPort = *input.IMAPPort
	}
	if input.UseSSL != nil {
		account.UseSSL = *input.UseSSL
	}
	if len(input.Folders) > 0 {
		foldersJSON, err := json.Marshal(input.Folders)
		if err != nil {
			return nil, ErrInvalidAccountData
		}
		account.Folders = string(foldersJSON)
	}
	if input.SearchCriteria != nil {
		account.SearchCriteria = *input.SearchCriteria
	}
	if input.MaxPerFetch != nil {
		account.MaxPerFetch = *input.MaxPerFetch
	}
	if input.MaxAgeDays != nil {
		account.MaxAgeDays = *input.MaxAgeDays
	}
	if input.RequireAttachments != nil {
		account.RequireAttachments = *input.RequireAttachments
	}
	if input.MaxAttachmentMB != nil {
		account.MaxAttachmentMB = *input.MaxAttachmentMB
	}
	if input.DownloadLinks != nil {
		account.DownloadLinks = *input.DownloadLinks
	}
	if input.PostAction != nil {
		account.PostAction = *input.PostAction
	}
	if input.PostActionFolder != nil {
		account.PostActionFolder = *input.PostActionFolder
	}

	if err := s.db.Save(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// SetEnabled enables or disables an account
func (s *AccountService) SetEnabled(id uint, enabled bool) error {
	result := s.db.Model(&models.MailAccount{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes an account configuration
func (s *AccountService) DeleteAccount(id uint) error {
	result := s.db.Delete(&models.MailAccount{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
