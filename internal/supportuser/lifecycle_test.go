package supportuser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"devassist/internal/notice"
	"devassist/internal/options"
)

type fakeIdentity struct {
	nextID    int64
	accounts  map[int64]string
	emails    map[int64]string
	createErr error
	deleteErr error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{nextID: 41, accounts: map[int64]string{}, emails: map[int64]string{}}
}

func (f *fakeIdentity) CreatePrivilegedAccount(_ context.Context, login, _ string) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	for _, existing := range f.accounts {
		if existing == login {
			return 0, fmt.Errorf("login %s is already taken", login)
		}
	}
	f.nextID++
	f.accounts[f.nextID] = login
	return f.nextID, nil
}

func (f *fakeIdentity) DeleteAccount(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeIdentity) SetEmail(_ context.Context, id int64, email string) error {
	if _, ok := f.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	f.emails[id] = email
	return nil
}

// failingStore rejects writes to one key
type failingStore struct {
	*options.Memory
	key string
}

func (s failingStore) Set(key, value string) error {
	if key == s.key {
		return errors.New("disk full")
	}
	return s.Memory.Set(key, value)
}

type fixture struct {
	life     *Lifecycle
	store    *options.Memory
	identity *fakeIdentity
	notices  *notice.Recorder
	now      time.Time
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    options.NewMemory(),
		identity: newFakeIdentity(),
		notices:  &notice.Recorder{},
		now:      epoch,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.life = New(f.store, OptionVault{Store: f.store}, f.identity, f.notices, logger)
	f.life.Clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func settingsWithDays(days int) options.Settings {
	return options.Settings{SupportUserEnabled: true, DeleteAfterDays: days}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	c, err := f.life.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.ID <= 0 {
		t.Errorf("Create() id = %d, want > 0", c.ID)
	}
	if want := fmt.Sprintf("support_%d", epoch.Unix()); c.Login != want {
		t.Errorf("Create() login = %q, want %q", c.Login, want)
	}
	if len(c.Secret) != SecretLength {
		t.Errorf("secret length = %d, want %d", len(c.Secret), SecretLength)
	}
	if c.State() != Created {
		t.Errorf("State() = %v, want created", c.State())
	}

	loaded, err := f.life.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID != c.ID || loaded.Login != c.Login || loaded.Secret != c.Secret || !loaded.CreatedAt.Equal(c.CreatedAt) {
		t.Errorf("Load() = %+v, want %+v", loaded, c)
	}
	if !f.notices.Has(notice.Success) {
		t.Error("Create() should raise a success notice")
	}
}

func TestCreateTwice(t *testing.T) {
	f := newFixture(t)

	if _, err := f.life.Create(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := f.life.Create(context.Background())
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Create() error = %v, want ErrAlreadyExists", err)
	}
	if len(f.identity.accounts) != 1 {
		t.Errorf("accounts = %d, want 1", len(f.identity.accounts))
	}
}

func TestCreateProvisioningFailure(t *testing.T) {
	f := newFixture(t)
	f.identity.createErr = errors.New("Sorry, that username already exists!")

	_, err := f.life.Create(context.Background())
	if err == nil || err.Error() != "Sorry, that username already exists!" {
		t.Fatalf("Create() error = %v, want the directory error verbatim", err)
	}
	if keys := f.store.Keys(); len(keys) != 0 {
		t.Errorf("nothing should be persisted, got %v", keys)
	}
	found := false
	for _, n := range f.notices.Drain() {
		if n.Level == notice.Error && n.Message == "Sorry, that username already exists!" {
			found = true
		}
	}
	if !found {
		t.Error("the directory error should be surfaced as a notice")
	}
}

func TestCreateRollsBackOnPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.life.Store = failingStore{Memory: f.store, key: KeyID}

	if _, err := f.life.Create(context.Background()); err == nil {
		t.Fatal("Create() should fail when the id cannot be stored")
	}
	if len(f.identity.accounts) != 0 {
		t.Errorf("account should be rolled back, got %v", f.identity.accounts)
	}
	if keys := f.store.Keys(); len(keys) != 0 {
		t.Errorf("partial fields left behind: %v", keys)
	}
}

func TestRevealOnce(t *testing.T) {
	f := newFixture(t)
	c, err := f.life.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	first, err := f.life.Reveal()
	if err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	if first != c.Secret {
		t.Errorf("first Reveal() = %q, want the plaintext", first)
	}

	for i := 0; i < 3; i++ {
		again, err := f.life.Reveal()
		if err != nil {
			t.Fatal(err)
		}
		if again != Mask {
			t.Errorf("Reveal() #%d = %q, want mask", i+2, again)
		}
	}

	loaded, _ := f.life.Load()
	if loaded.State() != Revealed {
		t.Errorf("State() = %v, want revealed", loaded.State())
	}
}

func TestRevealWithoutUser(t *testing.T) {
	f := newFixture(t)
	if _, err := f.life.Reveal(); !errors.Is(err, ErrNoSupportUser) {
		t.Errorf("Reveal() error = %v, want ErrNoSupportUser", err)
	}
}

func TestDaysRemainingFunc(t *testing.T) {
	tests := []struct {
		name    string
		days    int
		elapsed time.Duration
		want    int
	}{
		{"just created", 3, 0, 3},
		{"one second in", 3, time.Second, 3},
		{"one day in", 3, day, 2},
		{"two and a half days", 3, 60 * time.Hour, 1},
		{"exactly at expiry", 3, 3 * day, 1},
		{"past expiry", 3, 4 * day, 1},
		{"zero days", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DaysRemaining(epoch, tt.days, epoch.Add(tt.elapsed))
			if got != tt.want {
				t.Errorf("DaysRemaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScheduledCheck(t *testing.T) {
	tests := []struct {
		name    string
		days    int
		elapsed time.Duration
		deleted bool
	}{
		{"before expiry", 3, 60 * time.Hour, false},
		{"exactly at expiry", 3, 3 * day, false},
		{"after expiry", 3, 84 * time.Hour, true},
		{"auto delete off", 0, 365 * day, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.life.Create(context.Background()); err != nil {
				t.Fatal(err)
			}
			f.advance(tt.elapsed)

			deleted, err := f.life.ScheduledCheck(context.Background(), settingsWithDays(tt.days))
			if err != nil {
				t.Fatalf("ScheduledCheck() error = %v", err)
			}
			if deleted != tt.deleted {
				t.Errorf("ScheduledCheck() = %v, want %v", deleted, tt.deleted)
			}
			c, _ := f.life.Load()
			if (c.State() == Absent) != tt.deleted {
				t.Errorf("state after check = %v", c.State())
			}
			if tt.deleted && len(f.identity.accounts) != 0 {
				t.Error("expired account should be removed from the directory")
			}
		})
	}
}

func TestScheduledCheckWithoutUser(t *testing.T) {
	f := newFixture(t)
	deleted, err := f.life.ScheduledCheck(context.Background(), settingsWithDays(3))
	if err != nil || deleted {
		t.Errorf("ScheduledCheck() = %v, %v; want false, nil", deleted, err)
	}
}

func TestAllowedContinueExistence(t *testing.T) {
	f := newFixture(t)
	if _, err := f.life.Create(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := settingsWithDays(3)

	if ok, _ := f.life.AllowedContinueExistence(s); ok {
		t.Error("extension should not be offered on the first day")
	}

	f.advance(60 * time.Hour)
	if ok, _ := f.life.AllowedContinueExistence(s); !ok {
		t.Error("extension should be offered on the last day")
	}
	if ok, _ := f.life.AllowedContinueExistence(settingsWithDays(0)); ok {
		t.Error("extension should not be offered without auto delete")
	}
	if days, err := f.life.DaysRemaining(settingsWithDays(0)); err != nil || days != 0 {
		t.Errorf("DaysRemaining() without auto delete = %d, %v; want 0", days, err)
	}

	if err := f.life.Extend(); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	days, err := f.life.DaysRemaining(s)
	if err != nil || days != 3 {
		t.Errorf("DaysRemaining() after Extend = %d, %v; want 3", days, err)
	}

	f.advance(60 * time.Hour)
	if deleted, _ := f.life.ScheduledCheck(context.Background(), s); deleted {
		t.Error("extended account must survive its original expiry")
	}
}

func TestExtendWithoutUser(t *testing.T) {
	f := newFixture(t)
	if err := f.life.Extend(); !errors.Is(err, ErrNoSupportUser) {
		t.Errorf("Extend() error = %v, want ErrNoSupportUser", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	if err := f.life.Delete(context.Background()); err != nil {
		t.Fatalf("Delete() without user error = %v", err)
	}
	if len(f.notices.Drain()) != 0 {
		t.Error("Delete() without user should be silent")
	}

	if _, err := f.life.Create(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.life.Share(context.Background(), "help@example.com", "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if err := f.life.Delete(context.Background()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if keys := f.store.Keys(); len(keys) != 0 {
		t.Errorf("fields left after Delete(): %v", keys)
	}
	if len(f.identity.accounts) != 0 {
		t.Error("account should be gone")
	}
}

func TestDeleteFailureKeepsFields(t *testing.T) {
	f := newFixture(t)
	c, err := f.life.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	f.identity.deleteErr = errors.New("locked")

	if err := f.life.Delete(context.Background()); err == nil {
		t.Fatal("Delete() should fail")
	}
	loaded, _ := f.life.Load()
	if loaded.ID != c.ID {
		t.Error("fields must stay so the deletion can be retried")
	}
	if !f.notices.Has(notice.Error) {
		t.Error("failure should raise an error notice")
	}
}

func TestDeleteAccountAlreadyGone(t *testing.T) {
	f := newFixture(t)
	c, err := f.life.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	delete(f.identity.accounts, c.ID)

	if err := f.life.Delete(context.Background()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if loaded, _ := f.life.Load(); loaded.State() != Absent {
		t.Error("fields should be cleared")
	}
}

func TestRecreate(t *testing.T) {
	f := newFixture(t)
	first, err := f.life.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.life.Reveal(); err != nil {
		t.Fatal(err)
	}
	f.advance(time.Minute)

	second, err := f.life.Recreate(context.Background())
	if err != nil {
		t.Fatalf("Recreate() error = %v", err)
	}
	if second.ID == first.ID || second.Login == first.Login {
		t.Errorf("Recreate() returned the old account: %+v", second)
	}
	if second.State() != Created {
		t.Errorf("State() = %v, want created", second.State())
	}
	if _, ok := f.identity.accounts[first.ID]; ok {
		t.Error("old account should be deleted")
	}
}

func TestOnAccountDeleted(t *testing.T) {
	f := newFixture(t)
	c, err := f.life.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := f.life.OnAccountDeleted(c.ID + 100); err != nil {
		t.Fatal(err)
	}
	if loaded, _ := f.life.Load(); loaded.ID != c.ID {
		t.Error("an unrelated deletion must not clear the fields")
	}

	if err := f.life.OnAccountDeleted(c.ID); err != nil {
		t.Fatal(err)
	}
	if keys := f.store.Keys(); len(keys) != 0 {
		t.Errorf("fields left after external deletion: %v", keys)
	}
}

func TestOnEnableChanged(t *testing.T) {
	tests := []struct {
		name          string
		before, after bool
		wantExists    bool
	}{
		{"disabled", true, false, false},
		{"enabled", false, true, true},
		{"unchanged", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.life.Create(context.Background()); err != nil {
				t.Fatal(err)
			}
			if err := f.life.OnEnableChanged(context.Background(), tt.before, tt.after); err != nil {
				t.Fatal(err)
			}
			c, _ := f.life.Load()
			if (c.ID > 0) != tt.wantExists {
				t.Errorf("exists = %v, want %v", c.ID > 0, tt.wantExists)
			}
		})
	}
}

func TestShare(t *testing.T) {
	f := newFixture(t)
	c, err := f.life.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	msg, err := f.life.Share(context.Background(), " help@example.com ", "https://example.com")
	if err != nil {
		t.Fatalf("Share() error = %v", err)
	}
	if msg.To != "help@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Body, c.Secret) || !strings.Contains(msg.Body, c.Login) {
		t.Errorf("Body = %q, want login and secret", msg.Body)
	}
	if f.identity.emails[c.ID] != "help@example.com" {
		t.Error("account email should be set")
	}
	loaded, _ := f.life.Load()
	if loaded.Email != "help@example.com" || loaded.State() != Revealed {
		t.Errorf("after Share() = %+v, %v", loaded, loaded.State())
	}

	if _, err := f.life.Share(context.Background(), "other@example.com", ""); !errors.Is(err, ErrSecretRevealed) {
		t.Errorf("second Share() error = %v, want ErrSecretRevealed", err)
	}
}

func TestShareValidation(t *testing.T) {
	f := newFixture(t)
	for _, email := range []string{"", "not-an-email", "Help <help@example.com>"} {
		if _, err := f.life.Share(context.Background(), email, ""); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("Share(%q) error = %v, want ErrInvalidEmail", email, err)
		}
	}
	if _, err := f.life.Share(context.Background(), "help@example.com", ""); !errors.Is(err, ErrNoSupportUser) {
		t.Errorf("Share() without user error = %v, want ErrNoSupportUser", err)
	}
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	s := settingsWithDays(3)

	sum, err := f.life.Summarize(s)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Exists || sum.State != "absent" {
		t.Errorf("Summarize() = %+v, want absent", sum)
	}

	if _, err := f.life.Create(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.advance(60 * time.Hour)
	sum, err = f.life.Summarize(s)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Exists || sum.DaysRemaining != 1 || !sum.LoseAccessSoon || sum.State != "created" {
		t.Errorf("Summarize() = %+v", sum)
	}
}
