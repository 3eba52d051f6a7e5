package options

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"devassist/internal/models"
)

// Setting keys
const (
	KeyEnableDebug        = models.KeyPrefix + "_enable_wp_debug"
	KeyEnableDebugLog     = models.KeyPrefix + "_enable_wp_debug_log"
	KeyEnableDebugDisplay = models.KeyPrefix + "_enable_wp_debug_display"
	KeyProtectLog         = models.KeyPrefix + "_disable_direct_access_to_log"
	KeyEnableSupportUser  = models.KeyPrefix + "_enable_support_user"
	KeyDeleteAfterDays    = models.KeyPrefix + "_delete_support_user_after_days"
	KeyReset              = models.KeyPrefix + "_reset"
)

// Public setting names accepted by Apply
const (
	NameDebug           = "wp-debug"
	NameDebugLog        = "wp-debug-log"
	NameDebugDisplay    = "wp-debug-display"
	NameProtectLog      = "protect-log"
	NameSupportUser     = "support-user"
	NameDeleteAfterDays = "delete-after-days"
	NameReset           = "reset"
)

// DefaultDeleteAfterDays is used when the stored value is absent or unreadable
const DefaultDeleteAfterDays = 3

// Definition describes one persisted setting
type Definition struct {
	Name    string
	Key     string
	Default string
	Numeric bool
	Usage   string
}

// Definitions lists every user-facing setting in display order
var Definitions = []Definition{
	{Name: NameDebug, Key: KeyEnableDebug, Default: models.No, Usage: "Define WP_DEBUG in wp-config.php"},
	{Name: NameDebugLog, Key: KeyEnableDebugLog, Default: models.No, Usage: "Define WP_DEBUG_LOG in wp-config.php"},
	{Name: NameDebugDisplay, Key: KeyEnableDebugDisplay, Default: models.No, Usage: "Define WP_DEBUG_DISPLAY in wp-config.php"},
	{Name: NameProtectLog, Key: KeyProtectLog, Default: models.No, Usage: "Deny direct access to debug.log via .htaccess"},
	{Name: NameSupportUser, Key: KeyEnableSupportUser, Default: models.Yes, Usage: "Allow a temporary support administrator"},
	{Name: NameDeleteAfterDays, Key: KeyDeleteAfterDays, Default: strconv.Itoa(DefaultDeleteAfterDays), Numeric: true, Usage: "Delete the support user after N days (0 disables)"},
	{Name: NameReset, Key: KeyReset, Default: models.Yes, Usage: "Restore original state on deactivation"},
}

// Lookup finds a setting definition by public name
func Lookup(name string) (Definition, bool) {
	for _, d := range Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Settings is a snapshot of every setting, loaded once per operation.
type Settings struct {
	DebugEnabled        bool `json:"wp_debug"`
	DebugLogEnabled     bool `json:"wp_debug_log"`
	DebugDisplayEnabled bool `json:"wp_debug_display"`
	ProtectLog          bool `json:"protect_log"`
	SupportUserEnabled  bool `json:"support_user"`
	DeleteAfterDays     int  `json:"delete_after_days"`
	Reset               bool `json:"reset"`
}

// AutoDelete reports whether the support user expires automatically
func (s Settings) AutoDelete() bool {
	return s.DeleteAfterDays > 0
}

// Load reads a Settings snapshot from store
func Load(store Store) (Settings, error) {
	var s Settings
	var err error

	flags := []struct {
		def Definition
		dst *bool
	}{
		{mustLookup(NameDebug), &s.DebugEnabled},
		{mustLookup(NameDebugLog), &s.DebugLogEnabled},
		{mustLookup(NameDebugDisplay), &s.DebugDisplayEnabled},
		{mustLookup(NameProtectLog), &s.ProtectLog},
		{mustLookup(NameSupportUser), &s.SupportUserEnabled},
		{mustLookup(NameReset), &s.Reset},
	}
	for _, f := range flags {
		if *f.dst, err = loadFlag(store, f.def); err != nil {
			return Settings{}, err
		}
	}

	days, err := GetOr(store, KeyDeleteAfterDays, strconv.Itoa(DefaultDeleteAfterDays))
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read %s: %w", KeyDeleteAfterDays, err)
	}
	s.DeleteAfterDays = parseDays(days)

	return s, nil
}

// Apply validates and persists one setting by public name. It returns the
// snapshots taken before and after the write so callers can run change hooks.
func Apply(store Store, name, value string) (Settings, Settings, error) {
	def, ok := Lookup(name)
	if !ok {
		return Settings{}, Settings{}, fmt.Errorf("unknown setting: %s", name)
	}

	normalized, err := normalize(def, value)
	if err != nil {
		return Settings{}, Settings{}, err
	}

	before, err := Load(store)
	if err != nil {
		return Settings{}, Settings{}, err
	}
	if err := store.Set(def.Key, normalized); err != nil {
		return Settings{}, Settings{}, fmt.Errorf("failed to save %s: %w", name, err)
	}
	after, err := Load(store)
	if err != nil {
		return Settings{}, Settings{}, err
	}
	return before, after, nil
}

// EnsureDefault writes def's default only when the key has no valid value yet
func EnsureDefault(store Store, name, value string) (bool, error) {
	def, ok := Lookup(name)
	if !ok {
		return false, fmt.Errorf("unknown setting: %s", name)
	}
	current, exists, err := store.Get(def.Key)
	if err != nil {
		return false, err
	}
	if exists {
		if _, err := normalize(def, current); err == nil {
			return false, nil
		}
	}
	if err := store.Set(def.Key, value); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAll removes every setting key, used when resetting on deactivation
func DeleteAll(store Store) error {
	for _, d := range Definitions {
		if err := store.Delete(d.Key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", d.Key, err)
		}
	}
	return nil
}

func normalize(def Definition, value string) (string, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if def.Numeric {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%s must be a non-negative integer, got %q", def.Name, value)
		}
		return strconv.Itoa(n), nil
	}
	switch value {
	case models.Yes, "true", "on", "1":
		return models.Yes, nil
	case models.No, "false", "off", "0":
		return models.No, nil
	default:
		return "", fmt.Errorf("%s must be yes or no, got %q", def.Name, value)
	}
}

func loadFlag(store Store, def Definition) (bool, error) {
	v, err := GetOr(store, def.Key, def.Default)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", def.Key, err)
	}
	return v == models.Yes, nil
}

func parseDays(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return DefaultDeleteAfterDays
	}
	if n < 0 {
		return 0
	}
	return n
}

func mustLookup(name string) Definition {
	d, ok := Lookup(name)
	if !ok {
		panic("options: unknown setting " + name)
	}
	return d
}

var devHosts = map[string]bool{
	"localhost":   true,
	"local":       true,
	"loc":         true,
	"development": true,
	"dev":         true,
	"mamp":        true,
}

// IsDevEnvironment reports whether the site looks like a development install,
// either by the last label of its host or by the environment type.
func IsDevEnvironment(siteURL, environmentType string) bool {
	switch strings.ToLower(environmentType) {
	case "development", "local":
		return true
	}
	if siteURL == "" {
		return false
	}
	if !strings.Contains(siteURL, "://") {
		siteURL = "http://" + siteURL
	}
	u, err := url.Parse(siteURL)
	if err != nil {
		return false
	}
	labels := strings.Split(u.Hostname(), ".")
	return devHosts[strings.ToLower(labels[len(labels)-1])]
}
