package database

import (
	"os"
	"path/filepath"

	"github.com/LeviWoodfall/Regia/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize creates and returns a database connection
func Initialize(dbPath string) (*gorm.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	// Concurrent runs on different accounts rely on the unique indexes on
	// (account_id, message_id) and (email_id, sha256_hash): a lost race
	// resolves as a duplicate-key error, never a second row.
	return db.AutoMigrate(
		&models.MailAccount{},
		&models.Credential{},
		&models.Email{},
		&models.Document{},
		&models.IngestionLog{},
	)
}
