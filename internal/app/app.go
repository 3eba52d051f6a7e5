// Package app ties the debug engine and the support user lifecycle to the
// activation lifecycle of a site and to setting changes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"devassist/internal/debugmode"
	"devassist/internal/fsutil"
	"devassist/internal/models"
	"devassist/internal/notice"
	"devassist/internal/options"
	"devassist/internal/supportuser"
)

// Config collects what New needs to wire an App
type Config struct {
	Root            string
	LockDir         string
	SiteURL         string
	EnvironmentType string
	Store           options.Store
	Vault           supportuser.SecretVault
	Identity        supportuser.Identity
	Notifier        notice.Notifier
	Logger          *slog.Logger
}

// App is one managed site
type App struct {
	Store    options.Store
	Debug    *debugmode.Engine
	Support  *supportuser.Lifecycle
	Notifier notice.Notifier
	Logger   *slog.Logger

	SiteURL         string
	EnvironmentType string
}

// New wires the components of a site
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notice.Log{Logger: logger}
	}
	vault := cfg.Vault
	if vault == nil {
		vault = supportuser.OptionVault{Store: cfg.Store}
	}

	fs := fsutil.New(cfg.LockDir)
	return &App{
		Store:           cfg.Store,
		Debug:           debugmode.New(debugmode.PathsFor(cfg.Root), fs, cfg.Store, notifier, logger.With("component", "debugmode")),
		Support:         supportuser.New(cfg.Store, vault, cfg.Identity, notifier, logger.With("component", "supportuser")),
		Notifier:        notifier,
		Logger:          logger,
		SiteURL:         cfg.SiteURL,
		EnvironmentType: cfg.EnvironmentType,
	}
}

// Active reports whether the site was activated and not deactivated since
func (a *App) Active() (bool, error) {
	v, err := options.GetOr(a.Store, models.OptionActive, models.No)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", models.OptionActive, err)
	}
	return v == models.Yes, nil
}

// Activate stores default settings, records the original state of the
// managed files and applies log protection when it is on.
func (a *App) Activate(ctx context.Context) error {
	for _, def := range options.Definitions {
		value := def.Default
		if def.Name == options.NameSupportUser && options.IsDevEnvironment(a.SiteURL, a.EnvironmentType) {
			value = models.No
		}
		written, err := options.EnsureDefault(a.Store, def.Name, value)
		if err != nil {
			return fmt.Errorf("failed to store default for %s: %w", def.Name, err)
		}
		if written {
			a.Logger.Debug("default stored", "setting", def.Name, "value", value)
		}
	}

	if err := a.Debug.CaptureOriginals(); err != nil {
		return err
	}

	s, err := options.Load(a.Store)
	if err != nil {
		return err
	}
	if s.ProtectLog {
		if err := a.Debug.ProtectLog(); err != nil {
			return err
		}
	}

	if err := a.Store.Set(models.OptionActive, models.Yes); err != nil {
		return fmt.Errorf("failed to store %s: %w", models.OptionActive, err)
	}
	a.Logger.Info("site activated")
	return nil
}

// Deactivate always drops the log protection block. With the reset setting
// on it also restores the original constants, removes a log file created
// since activation, deletes the support user and forgets every setting.
func (a *App) Deactivate(ctx context.Context) error {
	s, err := options.Load(a.Store)
	if err != nil {
		return err
	}

	var errs []error
	if err := a.Debug.UnprotectLog(); err != nil {
		errs = append(errs, err)
	}

	if s.Reset {
		if err := a.Debug.Restore(); err != nil {
			errs = append(errs, err)
		}
		if err := a.Support.Reset(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := options.DeleteAll(a.Store); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.Store.Delete(models.OptionActive); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.Logger.Info("site deactivated", "reset", s.Reset)
	return nil
}

// AdminRequest runs the per-request upkeep: expired support users are
// deleted and the debug constants are brought in line with the settings.
// File problems are reported as notices so that unrelated commands still
// work on a broken site.
func (a *App) AdminRequest(ctx context.Context) (options.Settings, error) {
	s, err := options.Load(a.Store)
	if err != nil {
		return s, err
	}
	active, err := a.Active()
	if err != nil || !active {
		return s, err
	}

	if _, err := a.Support.ScheduledCheck(ctx, s); err != nil {
		a.Logger.Warn("scheduled support user check failed", "error", err)
	}
	if _, err := a.Debug.Sync(s); err != nil {
		a.Logger.Warn("debug constants not synced", "error", err)
	}

	if ok, err := a.Support.AllowedContinueExistence(s); err == nil && ok {
		a.Notifier.Notify(notice.Warning, "The support user will lose access soon. Run 'dva support extend' to keep it.")
	}
	return s, nil
}

// ApplySetting stores one setting and runs the hooks tied to it
func (a *App) ApplySetting(ctx context.Context, name, value string) (options.Settings, error) {
	before, after, err := options.Apply(a.Store, name, value)
	if err != nil {
		a.Notifier.Notify(notice.Error, err.Error())
		return before, err
	}

	active, err := a.Active()
	if err != nil {
		return after, err
	}

	var errs []error
	if before.SupportUserEnabled != after.SupportUserEnabled {
		if err := a.Support.OnEnableChanged(ctx, before.SupportUserEnabled, after.SupportUserEnabled); err != nil {
			errs = append(errs, err)
		}
	}
	if active && before.ProtectLog != after.ProtectLog {
		if err := a.Debug.OnProtectLogChanged(after.ProtectLog); err != nil {
			errs = append(errs, err)
		}
	}
	if active && debugChanged(before, after) {
		if _, err := a.Debug.Sync(after); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return after, err
	}
	a.Notifier.Notify(notice.Success, fmt.Sprintf("Setting %s saved.", name))
	return after, nil
}

func debugChanged(before, after options.Settings) bool {
	return before.DebugEnabled != after.DebugEnabled ||
		before.DebugLogEnabled != after.DebugLogEnabled ||
		before.DebugDisplayEnabled != after.DebugDisplayEnabled
}

// Overview is the assistant-style status of a site
type Overview struct {
	Active   bool                `json:"active"`
	SiteURL  string              `json:"site_url,omitempty"`
	Settings options.Settings    `json:"settings"`
	Debug    debugmode.Status    `json:"debug"`
	Support  supportuser.Summary `json:"support_user"`
}

// Status gathers the overview without changing anything
func (a *App) Status(ctx context.Context) (Overview, error) {
	s, err := options.Load(a.Store)
	if err != nil {
		return Overview{}, err
	}
	active, err := a.Active()
	if err != nil {
		return Overview{}, err
	}
	debug, err := a.Debug.Status(s)
	if err != nil {
		return Overview{}, err
	}
	support, err := a.Support.Summarize(s)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Active:   active,
		SiteURL:  a.SiteURL,
		Settings: s,
		Debug:    debug,
		Support:  support,
	}, nil
}
