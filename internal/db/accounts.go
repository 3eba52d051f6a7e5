package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"devassist/internal/models"
	"devassist/internal/supportuser"
)

var _ supportuser.Identity = (*AccountDirectory)(nil)

// AccountDirectory is the site's local user directory. Observers registered
// with OnDeleted run after every successful deletion, whoever asked for it.
type AccountDirectory struct {
	DB   *gorm.DB
	Cost int

	mu        sync.Mutex
	observers []func(id int64)
}

// NewAccountDirectory returns a directory over database
func NewAccountDirectory(database *gorm.DB) *AccountDirectory {
	return &AccountDirectory{DB: database, Cost: bcrypt.DefaultCost}
}

// OnDeleted registers fn to run after an account is deleted
func (d *AccountDirectory) OnDeleted(fn func(id int64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// CreatePrivilegedAccount adds an administrator with a bcrypt-hashed secret
func (d *AccountDirectory) CreatePrivilegedAccount(ctx context.Context, login, secret string) (int64, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return 0, errors.New("login cannot be empty")
	}

	var count int64
	if err := d.DB.WithContext(ctx).Model(&models.Account{}).Where("login = ?", login).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to check login: %w", err)
	}
	if count > 0 {
		return 0, fmt.Errorf("login %s is already taken", login)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), d.Cost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash secret: %w", err)
	}

	account := models.Account{
		Login:        login,
		PasswordHash: string(hash),
		Role:         models.RoleAdministrator,
	}
	if err := d.DB.WithContext(ctx).Create(&account).Error; err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}
	return account.ID, nil
}

// DeleteAccount removes the account and notifies observers
func (d *AccountDirectory) DeleteAccount(ctx context.Context, id int64) error {
	result := d.DB.WithContext(ctx).Delete(&models.Account{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete account %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account %d: %w", id, supportuser.ErrAccountNotFound)
	}

	d.mu.Lock()
	observers := append([]func(int64){}, d.observers...)
	d.mu.Unlock()
	for _, fn := range observers {
		fn(id)
	}
	return nil
}

// SetEmail records email on the account
func (d *AccountDirectory) SetEmail(ctx context.Context, id int64, email string) error {
	result := d.DB.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("email", email)
	if result.Error != nil {
		return fmt.Errorf("failed to update account %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account %d: %w", id, supportuser.ErrAccountNotFound)
	}
	return nil
}

// Get returns one account
func (d *AccountDirectory) Get(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	err := d.DB.WithContext(ctx).First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %d: %w", id, supportuser.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return &account, nil
}

// List returns every account ordered by id
func (d *AccountDirectory) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := d.DB.WithContext(ctx).Order("id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Verify reports whether secret matches the account's password
func (d *AccountDirectory) Verify(ctx context.Context, login, secret string) (bool, error) {
	var account models.Account
	err := d.DB.WithContext(ctx).Where("login = ?", login).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get account %s: %w", login, err)
	}
	err = bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}
