package config

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// StorageConfig controls the document archive layout.
type StorageConfig struct {
	BaseDir           string `json:"base_dir"`
	DateFormat        string `json:"date_format"` // Go reference layout
	MaxFilenameLength int    `json:"max_filename_length"`
}

// OCRConfig controls Tesseract-based text recognition.
type OCRConfig struct {
	Enabled  bool   `json:"enabled"`
	Language string `json:"language"`
	DPI      int    `json:"dpi"`
}

// DownloadConfig bounds invoice-link downloads.
type DownloadConfig struct {
	Enabled        bool `json:"enabled"`
	MaxSizeMB      int  `json:"max_size_mb"`
	TimeoutSeconds int  `json:"timeout_seconds"`
	MaxRedirects   int  `json:"max_redirects"`
}

// ClassifierConfig configures the LLM classification collaborator.
type ClassifierConfig struct {
	Enabled         bool   `json:"enabled"`
	BaseURL         string `json:"base_url"`
	APIKey          string `json:"api_key"`
	Model           string `json:"model"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	FallbackToRules bool   `json:"fallback_to_rules"`
}

// Config holds the application configuration
type Config struct {
	DatabasePath  string `json:"database_path"`
	APIPort       string `json:"api_port"`
	LogLevel      string `json:"log_level"`
	DataDir       string `json:"data_dir"`
	EncryptionKey string `json:"encryption_key"` // encrypts mailbox credentials at rest
	CORSOrigins   string `json:"cors_origins"`   // comma separated, * for all

	Storage    StorageConfig    `json:"storage"`
	OCR        OCRConfig        `json:"ocr"`
	Download   DownloadConfig   `json:"download"`
	Classifier ClassifierConfig `json:"classifier"`
}

// Default configuration values
const (
	DefaultDatabasePath = "data/regia.db"
	DefaultAPIPort      = "8420"
	DefaultLogLevel     = "INFO"
	DefaultDataDir      = "data"
	DefaultCORSOrigins  = "*"
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: DefaultDatabasePath,
		APIPort:      DefaultAPIPort,
		LogLevel:     DefaultLogLevel,
		DataDir:      DefaultDataDir,
		CORSOrigins:  DefaultCORSOrigins,
		Storage: StorageConfig{
			BaseDir:           filepath.Join(DefaultDataDir, "documents"),
			DateFormat:        "2006-01-02",
			MaxFilenameLength: 100,
		},
		OCR: OCRConfig{
			Enabled:  true,
			Language: "eng",
			DPI:      300,
		},
		Download: DownloadConfig{
			Enabled:        true,
			MaxSizeMB:      100,
			TimeoutSeconds: 60,
			MaxRedirects:   5,
		},
		Classifier: ClassifierConfig{
			Enabled:         true,
			BaseURL:         "http://localhost:11434/v1",
			Model:           "qwen2.5:0.5b",
			TimeoutSeconds:  30,
			FallbackToRules: true,
		},
	}

	// Config file is optional
	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return json.Unmarshal(data, c)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("REGIA_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("REGIA_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("REGIA_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("REGIA_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("REGIA_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("REGIA_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("REGIA_STORAGE_DIR"); val != "" {
		c.Storage.BaseDir = val
	}
	if val := os.Getenv("REGIA_OCR_ENABLED"); val != "" {
		c.OCR.Enabled = val == "true" || val == "1"
	}
	if val := os.Getenv("REGIA_OCR_LANGUAGE"); val != "" {
		c.OCR.Language = val
	}
	if val := os.Getenv("REGIA_OCR_DPI"); val != "" {
		if dpi, err := strconv.Atoi(val); err == nil && dpi > 0 {
			c.OCR.DPI = dpi
		}
	}
	if val := os.Getenv("REGIA_CLASSIFIER_BASE_URL"); val != "" {
		c.Classifier.BaseURL = val
	}
	if val := os.Getenv("REGIA_CLASSIFIER_API_KEY"); val != "" {
		c.Classifier.APIKey = val
	}
	if val := os.Getenv("REGIA_CLASSIFIER_MODEL"); val != "" {
		c.Classifier.Model = val
	}
}

// GetEncryptionKey returns the 32-byte key for credential encryption.
// An explicit key is hashed to the right length; an empty key derives a
// machine-local default so a fresh install still works.
func (c *Config) GetEncryptionKey() []byte {
	key := c.EncryptionKey
	if key == "" {
		key = c.DatabasePath + "-regia-credentials"
	}
	hash := sha256.Sum256([]byte(key))
	return hash[:]
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
