// Package supportuser manages a temporary administrator account for outside
// support staff: creation, reveal-once credentials, expiry and removal.
package supportuser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"devassist/internal/notice"
	"devassist/internal/options"
)

var (
	ErrNoSupportUser   = errors.New("support user does not exist")
	ErrAlreadyExists   = errors.New("support user already exists")
	ErrSecretRevealed  = errors.New("support user credentials were already displayed")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidEmail    = errors.New("invalid email address")
)

const day = 24 * time.Hour

// Identity provisions and removes accounts in the site's user directory.
// DeleteAccount returns ErrAccountNotFound when the id is unknown.
type Identity interface {
	CreatePrivilegedAccount(ctx context.Context, login, secret string) (int64, error)
	DeleteAccount(ctx context.Context, id int64) error
	SetEmail(ctx context.Context, id int64, email string) error
}

// Lifecycle owns the support account's persisted fields
type Lifecycle struct {
	Store    options.Store
	Vault    SecretVault
	Identity Identity
	Notifier notice.Notifier
	Logger   *slog.Logger
	Clock    func() time.Time
}

// New returns a Lifecycle using the wall clock
func New(store options.Store, vault SecretVault, identity Identity, notifier notice.Notifier, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		Store:    store,
		Vault:    vault,
		Identity: identity,
		Notifier: notifier,
		Logger:   logger,
		Clock:    time.Now,
	}
}

// Load returns the stored credential, secret included
func (l *Lifecycle) Load() (Credential, error) {
	c, err := load(l.Store)
	if err != nil {
		return c, err
	}
	if c.ID > 0 {
		vault, err := l.secretVault()
		if err != nil {
			return c, err
		}
		if c.Secret, err = vault.Get(); err != nil {
			return c, err
		}
	}
	return c, nil
}

// secretVault returns the vault the current secret was written to. The
// configured Vault only decides where a new secret goes.
func (l *Lifecycle) secretVault() (SecretVault, error) {
	backend, err := options.GetOr(l.Store, KeySecretBackend, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KeySecretBackend, err)
	}
	if backend == "" || backend == l.Vault.Backend() {
		return l.Vault, nil
	}
	return VaultFor(backend, l.Store)
}

// Create provisions a new support account. Nothing is persisted when the
// directory refuses the account; if persisting fails afterwards the account
// is removed again.
func (l *Lifecycle) Create(ctx context.Context) (Credential, error) {
	existing, err := load(l.Store)
	if err != nil {
		return Credential{}, err
	}
	if existing.ID > 0 {
		l.Notifier.Notify(notice.Error, "A support user already exists.")
		return Credential{}, ErrAlreadyExists
	}

	now := l.Clock()
	secret, err := GenerateSecret()
	if err != nil {
		return Credential{}, fmt.Errorf("failed to generate secret: %w", err)
	}
	c := Credential{
		Login:     LoginPrefix + strconv.FormatInt(now.Unix(), 10),
		Secret:    secret,
		CreatedAt: time.Unix(now.Unix(), 0),
	}

	c.ID, err = l.Identity.CreatePrivilegedAccount(ctx, c.Login, secret)
	if err != nil {
		l.Notifier.Notify(notice.Error, err.Error())
		return Credential{}, err
	}

	if err := l.persist(c); err != nil {
		l.Logger.Error("support user persistence failed, rolling back", "id", c.ID, "error", err)
		if derr := l.Identity.DeleteAccount(ctx, c.ID); derr != nil && !errors.Is(derr, ErrAccountNotFound) {
			l.Logger.Error("rollback failed", "id", c.ID, "error", derr)
		}
		if cerr := l.clear(); cerr != nil {
			l.Logger.Error("rollback failed to clear support user data", "id", c.ID, "error", cerr)
		}
		l.Notifier.Notify(notice.Error, "Can't store the support user.")
		return Credential{}, err
	}

	l.Logger.Info("support user created", "id", c.ID, "login", c.Login)
	l.Notifier.Notify(notice.Success, "Support user created.")
	return c, nil
}

func (l *Lifecycle) persist(c Credential) error {
	if err := l.Store.Set(KeySecretBackend, l.Vault.Backend()); err != nil {
		return fmt.Errorf("failed to store %s: %w", KeySecretBackend, err)
	}
	if err := l.Vault.Put(c.Secret); err != nil {
		return err
	}
	fields := []struct{ key, value string }{
		{KeyLogin, c.Login},
		{KeyCreatedAt, strconv.FormatInt(c.CreatedAt.Unix(), 10)},
		{KeyID, strconv.FormatInt(c.ID, 10)},
	}
	for _, f := range fields {
		if err := l.Store.Set(f.key, f.value); err != nil {
			return fmt.Errorf("failed to store %s: %w", f.key, err)
		}
	}
	return nil
}

func (l *Lifecycle) clear() error {
	vault, err := l.secretVault()
	if err != nil {
		return err
	}
	if err := vault.Clear(); err != nil {
		return err
	}
	if vault.Backend() != l.Vault.Backend() {
		if err := l.Vault.Clear(); err != nil {
			l.Logger.Warn("failed to clear the configured secret vault", "backend", l.Vault.Backend(), "error", err)
		}
	}
	return clearFields(l.Store)
}

// Reveal returns the plaintext secret the first time it is called and the
// mask afterwards. The vault is masked before the plaintext is handed out.
func (l *Lifecycle) Reveal() (string, error) {
	c, err := l.Load()
	if err != nil {
		return "", err
	}
	switch c.State() {
	case Absent:
		return "", ErrNoSupportUser
	case Revealed:
		return Mask, nil
	}

	vault, err := l.secretVault()
	if err != nil {
		return "", err
	}
	if err := vault.Put(Mask); err != nil {
		l.Notifier.Notify(notice.Error, "Can't mask the support user password.")
		return "", err
	}
	l.Logger.Info("support user secret revealed", "id", c.ID)
	return c.Secret, nil
}

// DaysRemaining is the whole number of days, at least 1, before an account
// created at createdAt expires.
func DaysRemaining(createdAt time.Time, days int, now time.Time) int {
	perDay := int64(day / time.Second)
	left := createdAt.Unix() + int64(days)*perDay - now.Unix()
	if left <= 0 {
		return 1
	}
	n := left / perDay
	if left%perDay != 0 {
		n++
	}
	return int(max(1, n))
}

// DaysRemaining reports the days left for the current account, or 0 when
// auto-deletion is off.
func (l *Lifecycle) DaysRemaining(s options.Settings) (int, error) {
	c, err := load(l.Store)
	if err != nil {
		return 0, err
	}
	if c.ID <= 0 {
		return 0, ErrNoSupportUser
	}
	if !s.AutoDelete() {
		return 0, nil
	}
	return DaysRemaining(c.CreatedAt, s.DeleteAfterDays, l.Clock()), nil
}

// AllowedContinueExistence is true on the last day before auto-deletion
func (l *Lifecycle) AllowedContinueExistence(s options.Settings) (bool, error) {
	if !s.AutoDelete() {
		return false, nil
	}
	c, err := load(l.Store)
	if err != nil || c.ID <= 0 {
		return false, err
	}
	return DaysRemaining(c.CreatedAt, s.DeleteAfterDays, l.Clock()) == 1, nil
}

// Extend restarts the expiry window from now
func (l *Lifecycle) Extend() error {
	c, err := load(l.Store)
	if err != nil {
		return err
	}
	if c.ID <= 0 {
		return ErrNoSupportUser
	}
	if err := l.Store.Set(KeyCreatedAt, strconv.FormatInt(l.Clock().Unix(), 10)); err != nil {
		l.Notifier.Notify(notice.Error, "Can't extend the support user.")
		return fmt.Errorf("failed to store %s: %w", KeyCreatedAt, err)
	}
	l.Notifier.Notify(notice.Success, "Support user existence extended.")
	return nil
}

// Delete removes the account and forgets it. Without an account it does
// nothing. An account already gone from the directory is forgotten too.
func (l *Lifecycle) Delete(ctx context.Context) error {
	c, err := load(l.Store)
	if err != nil {
		return err
	}
	if c.ID <= 0 {
		return nil
	}

	err = l.Identity.DeleteAccount(ctx, c.ID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		l.Notifier.Notify(notice.Error, "Can't delete the support user.")
		return err
	}
	if err := l.clear(); err != nil {
		l.Notifier.Notify(notice.Error, "Can't delete the support user data.")
		return err
	}

	l.Logger.Info("support user deleted", "id", c.ID)
	l.Notifier.Notify(notice.Success, "Support user deleted.")
	return nil
}

// Recreate replaces the current account with a fresh one
func (l *Lifecycle) Recreate(ctx context.Context) (Credential, error) {
	if err := l.Delete(ctx); err != nil {
		return Credential{}, err
	}
	return l.Create(ctx)
}

// ScheduledCheck deletes the account once its expiry has passed. It reports
// whether a deletion happened.
func (l *Lifecycle) ScheduledCheck(ctx context.Context, s options.Settings) (bool, error) {
	if !s.AutoDelete() {
		return false, nil
	}
	c, err := load(l.Store)
	if err != nil {
		return false, err
	}
	if c.ID <= 0 || c.CreatedAt.IsZero() {
		return false, nil
	}

	expires := c.CreatedAt.Add(time.Duration(s.DeleteAfterDays) * day)
	if !l.Clock().After(expires) {
		return false, nil
	}
	l.Logger.Info("support user expired", "id", c.ID, "expired_at", expires)
	if err := l.Delete(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// OnAccountDeleted forgets the support account when the directory removed it
func (l *Lifecycle) OnAccountDeleted(id int64) error {
	c, err := load(l.Store)
	if err != nil {
		return err
	}
	if c.ID <= 0 || c.ID != id {
		return nil
	}
	l.Logger.Info("support user removed externally", "id", id)
	return l.clear()
}

// OnEnableChanged deletes the account when the feature is switched off
func (l *Lifecycle) OnEnableChanged(ctx context.Context, before, after bool) error {
	if after || before == after {
		return nil
	}
	return l.Delete(ctx)
}

// ShareMessage is the credential hand-off composed by Share
type ShareMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Share reveals the secret into a message addressed to email and records
// the address on the account. Sharing needs a secret that was never shown.
func (l *Lifecycle) Share(ctx context.Context, email, siteURL string) (ShareMessage, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		l.Notifier.Notify(notice.Error, "The email address is not valid.")
		return ShareMessage{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	c, err := l.Load()
	if err != nil {
		return ShareMessage{}, err
	}
	switch c.State() {
	case Absent:
		return ShareMessage{}, ErrNoSupportUser
	case Revealed:
		l.Notifier.Notify(notice.Error, "You cannot share credentials that have already been displayed. Recreate the support user if necessary.")
		return ShareMessage{}, ErrSecretRevealed
	}

	if err := l.Identity.SetEmail(ctx, c.ID, addr.Address); err != nil {
		l.Notifier.Notify(notice.Error, "Can't update the support user email.")
		return ShareMessage{}, err
	}
	if err := l.Store.Set(KeyEmail, addr.Address); err != nil {
		return ShareMessage{}, fmt.Errorf("failed to store %s: %w", KeyEmail, err)
	}

	secret, err := l.Reveal()
	if err != nil {
		return ShareMessage{}, err
	}

	msg := ShareMessage{
		To:      addr.Address,
		Subject: "Support access credentials",
		Body: fmt.Sprintf("Site: %s\nLogin: %s\nPassword: %s\n",
			siteURL, c.Login, secret),
	}
	l.Notifier.Notify(notice.Success, "Support user credentials prepared for "+addr.Address+".")
	return msg, nil
}

// Reset removes the account as part of uninstall
func (l *Lifecycle) Reset(ctx context.Context) error {
	return l.Delete(ctx)
}

// Summary is a read-only overview that never reveals the secret
type Summary struct {
	Enabled        bool      `json:"enabled"`
	Exists         bool      `json:"exists"`
	ID             int64     `json:"id,omitempty"`
	Login          string    `json:"login,omitempty"`
	State          string    `json:"state"`
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
	AutoDelete     bool      `json:"auto_delete"`
	DaysRemaining  int       `json:"days_remaining,omitempty"`
	LoseAccessSoon bool      `json:"lose_access_soon"`
}

// Summarize builds the overview for s
func (l *Lifecycle) Summarize(s options.Settings) (Summary, error) {
	c, err := l.Load()
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		Enabled:    s.SupportUserEnabled,
		Exists:     c.ID > 0,
		ID:         c.ID,
		Login:      c.Login,
		State:      c.State().String(),
		Email:      c.Email,
		CreatedAt:  c.CreatedAt,
		AutoDelete: s.AutoDelete(),
	}
	if sum.Exists && sum.AutoDelete {
		sum.DaysRemaining = DaysRemaining(c.CreatedAt, s.DeleteAfterDays, l.Clock())
		sum.LoseAccessSoon = sum.DaysRemaining == 1
	}
	return sum, nil
}
