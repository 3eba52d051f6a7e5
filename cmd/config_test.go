package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"devassist/internal/models"
	"devassist/internal/notice"
	"devassist/internal/options"
	"devassist/internal/supportuser"
)

func TestResolveRoot(t *testing.T) {
	t.Setenv(EnvRoot, "")
	cwd := t.TempDir()
	testChdir(t, cwd)

	store := options.NewMemory()

	got, err := resolveRoot("", store)
	if err != nil {
		t.Fatal(err)
	}
	if gotEval, _ := filepath.EvalSymlinks(got); gotEval != evalSymlinks(t, cwd) {
		t.Errorf("resolveRoot() = %q, want the working directory", got)
	}

	stored := t.TempDir()
	store.Set(models.OptionSiteRoot, stored)
	if got, _ := resolveRoot("", store); got != stored {
		t.Errorf("resolveRoot() = %q, want stored %q", got, stored)
	}

	env := t.TempDir()
	t.Setenv(EnvRoot, env)
	if got, _ := resolveRoot("", store); got != env {
		t.Errorf("resolveRoot() = %q, want env %q", got, env)
	}

	flag := t.TempDir()
	if got, _ := resolveRoot(flag, store); got != flag {
		t.Errorf("resolveRoot() = %q, want flag %q", got, flag)
	}
}

func evalSymlinks(t *testing.T, path string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestResolveBackend(t *testing.T) {
	store := options.NewMemory()
	if got, _ := resolveBackend(store); got != models.SecretBackendOption {
		t.Errorf("default backend = %q", got)
	}
	store.Set(models.OptionSecretBackend, models.SecretBackendKeyring)
	if got, _ := resolveBackend(store); got != models.SecretBackendKeyring {
		t.Errorf("stored backend = %q", got)
	}
}

func TestSwitchSecretBackend(t *testing.T) {
	keyring.MockInit()
	store := options.NewMemory()
	store.Set(supportuser.KeyPassword, "pending-secret")

	if err := switchSecretBackend(store, models.SecretBackendKeyring); err != nil {
		t.Fatalf("switchSecretBackend() error: %v", err)
	}
	if _, ok, _ := store.Get(supportuser.KeyPassword); ok {
		t.Error("secret should leave the options store")
	}
	if got, _ := supportuser.NewKeyringVault().Get(); got != "pending-secret" {
		t.Errorf("keyring secret = %q", got)
	}
	if got, _, _ := store.Get(models.OptionSecretBackend); got != models.SecretBackendKeyring {
		t.Errorf("stored backend = %q", got)
	}

	if err := switchSecretBackend(store, models.SecretBackendOption); err != nil {
		t.Fatal(err)
	}
	if got, _, _ := store.Get(supportuser.KeyPassword); got != "pending-secret" {
		t.Errorf("secret not moved back, got %q", got)
	}

	if err := switchSecretBackend(store, "vault"); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"error", slog.LevelError},
		{"chatty", slog.LevelWarn},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNoticed(t *testing.T) {
	drained := []notice.Notice{{Level: notice.Error, Message: "boom"}}
	if !noticed(drained, errors.New("boom")) {
		t.Error("an error notice with the same text should count as printed")
	}
	if noticed(drained, errors.New("other")) {
		t.Error("a different error should still be printed")
	}
	if noticed([]notice.Notice{{Level: notice.Info, Message: "boom"}}, errors.New("boom")) {
		t.Error("only error notices count")
	}
}

func TestSettingRows(t *testing.T) {
	store := options.NewMemory()
	store.Set(options.KeyEnableDebug, models.Yes)

	rows, err := settingRows(store)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(options.Definitions) {
		t.Fatalf("rows = %d, want %d", len(rows), len(options.Definitions))
	}
	for _, r := range rows {
		switch r.Name {
		case options.NameDebug:
			if r.Value != models.Yes {
				t.Errorf("wp-debug = %q, want yes", r.Value)
			}
		case options.NameDeleteAfterDays:
			if r.Value != "3" {
				t.Errorf("delete-after-days default = %q, want 3", r.Value)
			}
		}
	}
}
