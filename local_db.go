package main

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TranslationRecord represents the schema of the translation_records table
type TranslationRecord struct {
	ID         uint      `gorm:"primaryKey"`              // Auto-incrementing primary key
	JobID      string    `gorm:"size:36;not null;index"`  // Job the record belongs to
	FileName   string    `gorm:"size:255;not null"`       // Uploaded file name
	SourceLang string    `gorm:"size:16;not null"`        // Language translated from
	TargetLang string    `gorm:"size:16;not null"`        // Language translated to
	UseOCR     bool      `gorm:"not null;default:false"`  // Whether OCR was requested
	Status     string    `gorm:"size:32;not null"`        // completed, failed or cancelled
	Mode       string    `gorm:"size:32"`                 // translated or copied
	Outcome    string    `gorm:"size:32"`                 // extracted, degraded or failed
	Pages      int       `gorm:"not null;default:0"`      // Page count of the document
	Groups     int       `gorm:"not null;default:0"`      // Translated text groups
	Overflows  int       `gorm:"not null;default:0"`      // Groups drawn beyond their box
	OutputPath string    `gorm:"size:1024"`               // Produced document
	Error      string    `gorm:"size:4096"`               // Error message of failed jobs
	ErrorCode  string    `gorm:"size:64"`                 // Classified error of failed jobs
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"` // When the job finished
}

// InitializeDB initializes the SQLite database and migrates the schema
func InitializeDB(dbPath string) *gorm.DB {
	db, err := openDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return db
}

func openDB(dbPath string) (*gorm.DB, error) {
	// Ensure db directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Migrate the schema (create the table if it doesn't exist)
	if err := db.AutoMigrate(&TranslationRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

// InsertTranslationRecord inserts a new record into the database
func InsertTranslationRecord(db *gorm.DB, record TranslationRecord) error {
	result := db.Create(&record)
	return result.Error
}

// GetTranslationRecords retrieves the most recent records, newest first
func GetTranslationRecords(db *gorm.DB, limit int) ([]TranslationRecord, error) {
	var records []TranslationRecord
	result := db.Order("id desc").Limit(limit).Find(&records)
	return records, result.Error
}
