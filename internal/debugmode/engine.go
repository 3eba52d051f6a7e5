// Package debugmode keeps the WordPress debug constants in wp-config.php and
// the debug.log access rule in .htaccess in line with the stored settings,
// and puts both back the way they were found on uninstall.
package debugmode

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"devassist/internal/fsutil"
	"devassist/internal/marker"
	"devassist/internal/models"
	"devassist/internal/notice"
	"devassist/internal/options"
	"devassist/internal/original"
	"devassist/internal/wpconfig"
)

// Managed constants, in the order they are written
const (
	ConstDebug        = "WP_DEBUG"
	ConstDebugLog     = "WP_DEBUG_LOG"
	ConstDebugDisplay = "WP_DEBUG_DISPLAY"
)

// Constants lists every constant the engine manages
var Constants = []string{ConstDebug, ConstDebugLog, ConstDebugDisplay}

const (
	// HtaccessMarker names the block holding the log access rule
	HtaccessMarker = models.KeyPrefix + "_debug_log"
	// LogArtifact is the name the log file's original existence is stored under
	LogArtifact = "debug_log"
	// LargeLogSize is the size from which the log is reported as large
	LargeLogSize = 10 << 20
)

// Paths locates the files of one site
type Paths struct {
	Root     string
	Config   string
	Htaccess string
	Log      string
	// LogURLPath is the request path the access rule denies
	LogURLPath string
}

// PathsFor returns the standard layout under a WordPress root
func PathsFor(root string) Paths {
	return Paths{
		Root:       root,
		Config:     filepath.Join(root, "wp-config.php"),
		Htaccess:   filepath.Join(root, ".htaccess"),
		Log:        filepath.Join(root, "wp-content", "debug.log"),
		LogURLPath: "/wp-content/debug.log",
	}
}

// Engine drives wpconfig, marker and original against one site.
type Engine struct {
	Paths     Paths
	FS        *fsutil.FS
	Patcher   *marker.Patcher
	Originals *original.Store
	Notifier  notice.Notifier
	Logger    *slog.Logger
}

// New wires an Engine for paths
func New(paths Paths, fs *fsutil.FS, opts options.Store, notifier notice.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		Paths:     paths,
		FS:        fs,
		Patcher:   marker.New(fs),
		Originals: original.New(opts),
		Notifier:  notifier,
		Logger:    logger,
	}
}

// Desired maps each managed constant to the value settings ask for
func Desired(s options.Settings) map[string]bool {
	return map[string]bool{
		ConstDebug:        s.DebugEnabled,
		ConstDebugLog:     s.DebugLogEnabled,
		ConstDebugDisplay: s.DebugDisplayEnabled,
	}
}

// Sync rewrites wp-config.php when a constant's live value differs from the
// settings. The file is only written when something changed; the returned
// bool reports whether it was.
func (e *Engine) Sync(s options.Settings) (bool, error) {
	want := Desired(s)

	changed, err := e.FS.Update(e.Paths.Config, func(content string) (string, error) {
		var err error
		for _, name := range Constants {
			live := wpconfig.Detect(content, name) == models.Enabled
			if live == want[name] {
				continue
			}
			content, err = wpconfig.Set(content, name, models.TriStateOf(want[name]))
			if err != nil {
				return "", fmt.Errorf("%s: %w", name, err)
			}
			e.Logger.Debug("constant toggled", "name", name, "enabled", want[name])
		}
		return content, nil
	})
	if err != nil {
		e.reportConfigError(err)
		return false, err
	}
	return changed, nil
}

// CaptureOriginals records the pre-existing state of every constant and of
// the log file. Records made by an earlier activation are kept.
func (e *Engine) CaptureOriginals() error {
	content, err := e.FS.ReadText(e.Paths.Config)
	if err != nil {
		e.reportConfigError(err)
		return err
	}

	for _, name := range Constants {
		state := wpconfig.Detect(content, name)
		written, err := e.Originals.CaptureOnce(name, state)
		if err != nil {
			e.Notifier.Notify(notice.Error, fmt.Sprintf("Can't store the original %s value.", name))
			return err
		}
		if written {
			e.Logger.Info("original captured", "name", name, "state", string(state))
		}
	}

	if _, err := e.Originals.CaptureExistenceOnce(LogArtifact, e.FS.Exists(e.Paths.Log)); err != nil {
		return err
	}
	return nil
}

// Restore puts every constant back to its captured original and removes
// the log file when it did not exist before install. Records are only
// dropped once wp-config.php was written, so a failed restore can be rerun.
func (e *Engine) Restore() error {
	targets := make(map[string]models.TriState, len(Constants))
	for _, name := range Constants {
		state, err := e.Originals.Target(name)
		if err != nil {
			return err
		}
		targets[name] = state
	}

	_, err := e.FS.Update(e.Paths.Config, func(content string) (string, error) {
		var err error
		for _, name := range Constants {
			// An untouched definition keeps its original spelling.
			if wpconfig.Detect(content, name) == targets[name] {
				continue
			}
			content, err = wpconfig.Set(content, name, targets[name])
			if err != nil {
				return "", fmt.Errorf("%s: %w", name, err)
			}
		}
		return content, nil
	})
	if err != nil {
		e.reportConfigError(err)
		return err
	}

	for _, name := range Constants {
		if err := e.Originals.Forget(name); err != nil {
			return err
		}
	}

	return e.removeLogIfNew()
}

func (e *Engine) removeLogIfNew() error {
	existed, err := e.Originals.ConsumeExistence(LogArtifact)
	if err != nil {
		return err
	}
	if existed || !e.FS.Exists(e.Paths.Log) {
		return nil
	}
	return e.DeleteLog()
}

// DeleteLog removes the debug log file
func (e *Engine) DeleteLog() error {
	if err := e.FS.Remove(e.Paths.Log); err != nil {
		e.Notifier.Notify(notice.Error, fmt.Sprintf("Can't delete the %s.", e.Paths.Log))
		return err
	}
	return nil
}

// Directives returns the rule denying HTTP access to the log file
func (e *Engine) Directives() string {
	path := strings.ReplaceAll(e.Paths.LogURLPath, ".", `\.`)
	return strings.Join([]string{
		`<If "%{REQUEST_URI} =~ m#^` + path + `#">`,
		`	<IfModule mod_authz_core.c>`,
		`		Require all denied`,
		`	</IfModule>`,
		`	<IfModule !mod_authz_core.c>`,
		`		Order deny,allow`,
		`		Deny from all`,
		`	</IfModule>`,
		`</If>`,
	}, "\n")
}

// ProtectLog adds the access rule to .htaccess
func (e *Engine) ProtectLog() error {
	if err := e.Patcher.Upsert(e.Paths.Htaccess, HtaccessMarker, e.Directives()); err != nil {
		e.Notifier.Notify(notice.Error, "Can't add the directives to the .htaccess file.")
		return err
	}
	return nil
}

// UnprotectLog removes the access rule from .htaccess. A site without an
// .htaccess file has nothing to remove.
func (e *Engine) UnprotectLog() error {
	err := e.Patcher.Remove(e.Paths.Htaccess, HtaccessMarker)
	if errors.Is(err, marker.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		e.Notifier.Notify(notice.Error, "Can't remove the directives from the .htaccess file.")
		return err
	}
	return nil
}

// OnProtectLogChanged reacts to the protect-log setting being saved
func (e *Engine) OnProtectLogChanged(enabled bool) error {
	if enabled {
		return e.ProtectLog()
	}
	return e.UnprotectLog()
}

func (e *Engine) reportConfigError(err error) {
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		e.Notifier.Notify(notice.Error, fmt.Sprintf("Can't read the %s.", e.Paths.Config))
	case errors.Is(err, fsutil.ErrConcurrentModification):
		e.Notifier.Notify(notice.Error, fmt.Sprintf("The %s was changed by someone else; nothing was written.", e.Paths.Config))
	default:
		e.Notifier.Notify(notice.Error, fmt.Sprintf("Can't update the %s.", e.Paths.Config))
	}
	e.Logger.Error("config update failed", "path", e.Paths.Config, "error", err)
}
