package cmd

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"devassist/internal/db"
	"devassist/internal/supportuser"
)

const testConfig = "<?php\ndefine( 'DB_NAME', 'wordpress' );\n\n$table_prefix = 'wp_';\n"

// run executes one dva invocation with fresh global flag values
func run(t *testing.T, args ...string) error {
	t.Helper()
	jsonOutput, siteRoot, initSecretBackend = false, "", ""
	forceInit, initSiteURL, initEnvType = false, "", ""
	supportShareEmail, supportExtendNow = "", false
	notices.Drain()

	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(testContext(t))
}

func newTestSiteDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "wp-content"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "wp-config.php"), []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".htaccess"), []byte("# BEGIN WordPress\n# END WordPress\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(db.EnvDBPath, "")
	t.Setenv(EnvRoot, "")
	t.Setenv(EnvEnvironmentType, "")
	testChdir(t, root)
	t.Cleanup(func() { db.CloseDB() })
	return root
}

func TestCommandsEndToEnd(t *testing.T) {
	root := newTestSiteDir(t)
	configPath := filepath.Join(root, "wp-config.php")

	if err := run(t, "init", "--site-url", "https://example.com"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := run(t, "init"); err == nil {
		t.Error("second init without --force should fail")
	}
	if err := run(t, "activate"); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := run(t, "settings", "set", "wp-debug", "yes"); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	data, _ := os.ReadFile(configPath)
	if !strings.Contains(string(data), "define( 'WP_DEBUG', true );") {
		t.Errorf("wp-config.php should define WP_DEBUG:\n%s", data)
	}
	if err := run(t, "settings", "set", "nonsense", "yes"); err == nil {
		t.Error("unknown setting should fail")
	}

	if err := run(t, "log", "protect"); err != nil {
		t.Fatalf("log protect: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(root, ".htaccess"))
	if !strings.Contains(string(data), "Require all denied") {
		t.Errorf(".htaccess should deny the log:\n%s", data)
	}

	if err := run(t, "support", "create"); err != nil {
		t.Fatalf("support create: %v", err)
	}
	c, err := site.Support.Load()
	if err != nil || c.State() != supportuser.Created {
		t.Fatalf("support user = %+v, %v", c, err)
	}
	if err := run(t, "support", "reveal"); err != nil {
		t.Fatalf("support reveal: %v", err)
	}
	if c, _ := site.Support.Load(); c.State() != supportuser.Revealed {
		t.Error("reveal should mask the password")
	}
	if err := run(t, "support", "extend"); err == nil {
		t.Error("extend on the first day should need --force")
	}

	if err := run(t, "account", "delete", strconv.FormatInt(c.ID, 10)); err != nil {
		t.Fatalf("account delete: %v", err)
	}
	if c, _ := site.Support.Load(); c.State() != supportuser.Absent {
		t.Error("deleting the account should forget the support user")
	}

	if err := run(t, "status", "--json"); err != nil {
		t.Fatalf("status: %v", err)
	}

	if err := run(t, "deactivate"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	data, _ = os.ReadFile(configPath)
	if string(data) != testConfig {
		t.Errorf("wp-config.php not restored:\n%s", data)
	}
}

func TestSupportCreateWhenDisabled(t *testing.T) {
	newTestSiteDir(t)

	if err := run(t, "init", "--site-url", "http://shop.local"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "activate"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "support", "create"); err == nil {
		t.Error("create should fail on a development site until support-user is enabled")
	}
	if err := run(t, "settings", "set", "support-user", "yes"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "support", "create"); err != nil {
		t.Errorf("create after enabling: %v", err)
	}
}

func TestSupportSecretFollowsBackendSwitch(t *testing.T) {
	keyring.MockInit()
	newTestSiteDir(t)

	if err := run(t, "init", "--site-url", "https://example.com", "--secret-backend", "keyring"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "activate"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "support", "create"); err != nil {
		t.Fatal(err)
	}
	c, err := site.Support.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := supportuser.NewKeyringVault().Get(); got == "" || got != c.Secret {
		t.Fatalf("keyring secret = %q, want the created secret", got)
	}

	if err := run(t, "config", "secret-backend", "option"); err != nil {
		t.Fatal(err)
	}
	if got, _ := supportuser.NewKeyringVault().Get(); got != "" {
		t.Errorf("keyring should be empty after the switch, got %q", got)
	}
	if moved, _ := site.Support.Load(); moved.Secret != c.Secret {
		t.Errorf("secret after switch = %q, want %q", moved.Secret, c.Secret)
	}

	if err := run(t, "support", "delete"); err != nil {
		t.Fatal(err)
	}
	if got, _ := supportuser.NewKeyringVault().Get(); got != "" {
		t.Errorf("keyring after delete = %q", got)
	}
	if c, _ := site.Support.Load(); c.State() != supportuser.Absent {
		t.Error("delete should forget the support user")
	}
}

func TestAccountVerifyAndShow(t *testing.T) {
	newTestSiteDir(t)
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	if err := run(t, "init", "--site-url", "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "activate"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "support", "create"); err != nil {
		t.Fatal(err)
	}
	c, err := site.Support.Load()
	if err != nil {
		t.Fatal(err)
	}

	rootCmd.SetIn(strings.NewReader(c.Secret + "\n"))
	if err := run(t, "account", "verify", c.Login); err != nil {
		t.Errorf("verify with the generated password: %v", err)
	}
	rootCmd.SetIn(strings.NewReader("not-the-password\n"))
	if err := run(t, "account", "verify", c.Login); err == nil {
		t.Error("verify with a wrong password should fail")
	}

	if err := run(t, "account", "show", strconv.FormatInt(c.ID, 10)); err != nil {
		t.Errorf("account show: %v", err)
	}
	if err := run(t, "account", "show", "999"); err == nil {
		t.Error("account show of an unknown id should fail")
	}
	if err := run(t, "config", "options", "devassist_support"); err != nil {
		t.Errorf("config options: %v", err)
	}
}

func TestReadSecret(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"s3cret\n", "s3cret", false},
		{"s3cret\r\nignored\n", "s3cret", false},
		{"no-newline", "no-newline", false},
		{"", "", true},
		{"\n", "", true},
	}
	for _, tt := range tests {
		got, err := readSecret(strings.NewReader(tt.in))
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("readSecret(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestCommandsRequireInit(t *testing.T) {
	newTestSiteDir(t)
	db.CloseDB()

	err := run(t, "status")
	if err == nil || !strings.Contains(err.Error(), "dva init") {
		t.Errorf("status before init error = %v, want a hint to run dva init", err)
	}
}
