package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"devassist/internal/models"
)

const (
	// DataDir is the directory name for devassist data
	DataDir = ".devassist"
	// DBFileName is the database filename within the data directory
	DBFileName = "db.sqlite"
	// LockDirName holds the advisory lock files for site file writes
	LockDirName = "locks"
	// SchemaVersion is the current schema version
	SchemaVersion = "1"
	// EnvDBPath overrides the database location
	EnvDBPath = "DVA_DB_PATH"
)

var (
	db   *gorm.DB
	dbMu sync.RWMutex
)

// InitDB initializes the database connection and runs migrations
func InitDB(dbPath string) (*gorm.DB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	database, err := gorm.Open(sqlite.Open(dbPath), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer; a small pool still lets reads overlap.
	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)

	if err := database.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := database.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dbMu.Lock()
	db = database
	dbMu.Unlock()
	return database, nil
}

func runMigrations(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Option{},
		&models.Account{},
	)
}

// GetDB returns the current database connection
func GetDB() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}

// SetDB sets the database connection (used for testing)
func SetDB(database *gorm.DB) {
	dbMu.Lock()
	defer dbMu.Unlock()
	db = database
}

// CloseDB closes the database connection
func CloseDB() error {
	dbMu.Lock()
	defer dbMu.Unlock()

	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	err = sqlDB.Close()
	db = nil
	return err
}

// FindDataRoot searches upwards from the working directory for a directory
// holding a .devassist data dir
func FindDataRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	dir := cwd
	for {
		if info, err := os.Stat(filepath.Join(dir, DataDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a devassist site (no %s/ found)", DataDir)
		}
		dir = parent
	}
}

// GetDefaultDBPath returns the database path for the current site. DVA_DB_PATH
// wins; otherwise the nearest data dir is used, falling back to the working
// directory.
func GetDefaultDBPath() (string, error) {
	if p := os.Getenv(EnvDBPath); p != "" {
		return p, nil
	}
	root, err := FindDataRoot()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return "", cwdErr
		}
		return filepath.Join(cwd, DataDir, DBFileName), nil
	}
	return filepath.Join(root, DataDir, DBFileName), nil
}

// LockDir returns the lock directory next to the database at dbPath
func LockDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), LockDirName)
}

// EnsureInitialized opens the default database, failing when it was never
// created by `dva init`
func EnsureInitialized() error {
	dbMu.RLock()
	isNil := db == nil
	dbMu.RUnlock()

	if isNil {
		dbPath, err := GetDefaultDBPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("devassist not initialized. Run 'dva init' first")
		}
		_, err = InitDB(dbPath)
		return err
	}
	return nil
}
