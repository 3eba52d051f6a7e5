package supportuser

import (
	"fmt"
	"strconv"
	"time"

	"devassist/internal/models"
	"devassist/internal/options"
)

// Mask replaces the secret once it has been shown
const Mask = "************"

// LoginPrefix starts every generated login
const LoginPrefix = "support_"

// Persisted field keys
const (
	KeyID        = models.KeyPrefix + "_support_user_id"
	KeyLogin     = models.KeyPrefix + "_support_user_login"
	KeyPassword  = models.KeyPrefix + "_support_user_password"
	KeyCreatedAt = models.KeyPrefix + "_support_user_created_at"
	KeyEmail     = models.KeyPrefix + "_support_user_email"
	// KeySecretBackend names the vault the secret was written to
	KeySecretBackend = models.KeyPrefix + "_support_user_secret_backend"
)

// State is the lifecycle position of the support credential
type State int

const (
	// Absent means no support account exists
	Absent State = iota
	// Created means the account exists and its secret was never shown
	Created
	// Revealed means the secret was shown once and is now masked
	Revealed
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Created:
		return "created"
	case Revealed:
		return "revealed"
	default:
		return "unknown"
	}
}

// Credential is the persisted view of the support account
type Credential struct {
	ID        int64     `json:"id"`
	Login     string    `json:"login,omitempty"`
	Secret    string    `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Email     string    `json:"email,omitempty"`
}

// State derives the lifecycle state from the stored fields. A lost secret
// counts as revealed since it can never be shown again.
func (c Credential) State() State {
	switch {
	case c.ID <= 0:
		return Absent
	case c.Secret == "" || c.Secret == Mask:
		return Revealed
	default:
		return Created
	}
}

// load reads every field except the secret
func load(store options.Store) (Credential, error) {
	var c Credential

	id, err := options.GetOr(store, KeyID, "0")
	if err != nil {
		return c, fmt.Errorf("failed to read support user id: %w", err)
	}
	c.ID, _ = strconv.ParseInt(id, 10, 64)

	if c.Login, err = options.GetOr(store, KeyLogin, ""); err != nil {
		return c, fmt.Errorf("failed to read support user login: %w", err)
	}

	created, err := options.GetOr(store, KeyCreatedAt, "0")
	if err != nil {
		return c, fmt.Errorf("failed to read support user creation time: %w", err)
	}
	if sec, _ := strconv.ParseInt(created, 10, 64); sec > 0 {
		c.CreatedAt = time.Unix(sec, 0)
	}

	if c.Email, err = options.GetOr(store, KeyEmail, ""); err != nil {
		return c, fmt.Errorf("failed to read support user email: %w", err)
	}
	return c, nil
}

func clearFields(store options.Store) error {
	for _, key := range []string{KeyID, KeyLogin, KeyPassword, KeyCreatedAt, KeyEmail, KeySecretBackend} {
		if err := store.Delete(key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}
