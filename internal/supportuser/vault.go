package supportuser

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"devassist/internal/models"
	"devassist/internal/options"
)

// SecretVault holds the support user's secret between creation and reveal.
type SecretVault interface {
	Put(secret string) error
	// Get returns "" when nothing is stored
	Get() (string, error)
	Clear() error
	// Backend is the name VaultFor resolves back to this vault
	Backend() string
}

// OptionVault keeps the secret in the options store
type OptionVault struct {
	Store options.Store
}

func (v OptionVault) Put(secret string) error {
	return v.Store.Set(KeyPassword, secret)
}

func (v OptionVault) Get() (string, error) {
	return options.GetOr(v.Store, KeyPassword, "")
}

func (v OptionVault) Clear() error {
	return v.Store.Delete(KeyPassword)
}

func (v OptionVault) Backend() string { return models.SecretBackendOption }

// Keyring identifiers
const (
	KeyringServiceName = models.KeyPrefix
	KeyringSecretKey   = "support-user-password"
)

// KeyringVault keeps the secret in the system keyring
type KeyringVault struct {
	Service string
	User    string
}

// NewKeyringVault returns a vault using the default service and key names
func NewKeyringVault() KeyringVault {
	return KeyringVault{Service: KeyringServiceName, User: KeyringSecretKey}
}

func (v KeyringVault) Put(secret string) error {
	if err := keyring.Set(v.Service, v.User, secret); err != nil {
		return fmt.Errorf("failed to store secret in keyring: %w", err)
	}
	return nil
}

func (v KeyringVault) Get() (string, error) {
	secret, err := keyring.Get(v.Service, v.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret from keyring: %w", err)
	}
	return secret, nil
}

func (v KeyringVault) Clear() error {
	err := keyring.Delete(v.Service, v.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete secret from keyring: %w", err)
	}
	return nil
}

func (v KeyringVault) Backend() string { return models.SecretBackendKeyring }

// VaultFor picks the vault for a configured backend name
func VaultFor(backend string, store options.Store) (SecretVault, error) {
	switch backend {
	case "", models.SecretBackendOption:
		return OptionVault{Store: store}, nil
	case models.SecretBackendKeyring:
		return NewKeyringVault(), nil
	default:
		return nil, fmt.Errorf("unknown secret backend: %s (use %s or %s)", backend, models.SecretBackendOption, models.SecretBackendKeyring)
	}
}
