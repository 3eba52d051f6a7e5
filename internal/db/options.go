package db

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"devassist/internal/models"
	"devassist/internal/options"
)

var _ options.Store = (*OptionStore)(nil)

// OptionStore persists options in the options table
type OptionStore struct {
	DB *gorm.DB
}

// NewOptionStore returns a store over database
func NewOptionStore(database *gorm.DB) *OptionStore {
	return &OptionStore{DB: database}
}

func (s *OptionStore) Get(key string) (string, bool, error) {
	var opt models.Option
	err := s.DB.Where("key = ?", key).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get option %s: %w", key, err)
	}
	return opt.Value, true, nil
}

func (s *OptionStore) Set(key, value string) error {
	opt := models.Option{Key: key, Value: value}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&opt).Error
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", key, err)
	}
	return nil
}

func (s *OptionStore) Delete(key string) error {
	if err := s.DB.Where("key = ?", key).Delete(&models.Option{}).Error; err != nil {
		return fmt.Errorf("failed to delete option %s: %w", key, err)
	}
	return nil
}

// List returns every option whose key starts with prefix, ordered by key
func (s *OptionStore) List(prefix string) ([]models.Option, error) {
	var opts []models.Option
	query := s.DB.Order("key")
	if prefix != "" {
		query = query.Where("key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	}
	if err := query.Find(&opts).Error; err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	return opts, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
