package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"devassist/internal/app"
	"devassist/internal/db"
	"devassist/internal/models"
	"devassist/internal/options"
	"devassist/internal/supportuser"
)

// Environment overrides
const (
	EnvRoot            = "DVA_ROOT"
	EnvEnvironmentType = "WP_ENVIRONMENT_TYPE"
)

// resolveRoot picks the WordPress root: flag, then environment, then the
// value stored by init, then the working directory.
func resolveRoot(flag string, store options.Store) (string, error) {
	root := flag
	if root == "" {
		root = os.Getenv(EnvRoot)
	}
	if root == "" && store != nil {
		stored, err := options.GetOr(store, models.OptionSiteRoot, "")
		if err != nil {
			return "", err
		}
		root = stored
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve site root %s: %w", root, err)
	}
	return abs, nil
}

// resolveBackend returns the stored secret backend choice
func resolveBackend(store options.Store) (string, error) {
	return options.GetOr(store, models.OptionSecretBackend, models.SecretBackendOption)
}

// openSite wires the App for the current database
func openSite() error {
	database := db.GetDB()
	store := db.NewOptionStore(database)

	root, err := resolveRoot(siteRoot, store)
	if err != nil {
		return err
	}
	backend, err := resolveBackend(store)
	if err != nil {
		return err
	}
	vault, err := supportuser.VaultFor(backend, store)
	if err != nil {
		return err
	}
	siteURL, err := options.GetOr(store, models.OptionSiteURL, "")
	if err != nil {
		return err
	}
	envType := os.Getenv(EnvEnvironmentType)
	if envType == "" {
		if envType, err = options.GetOr(store, models.OptionEnvironment, ""); err != nil {
			return err
		}
	}
	dbPath, err := db.GetDefaultDBPath()
	if err != nil {
		return err
	}

	accounts = db.NewAccountDirectory(database)
	site = app.New(app.Config{
		Root:            root,
		LockDir:         db.LockDir(dbPath),
		SiteURL:         siteURL,
		EnvironmentType: envType,
		Store:           store,
		Vault:           vault,
		Identity:        accounts,
		Notifier:        notices,
		Logger:          logger,
	})
	accounts.OnDeleted(func(id int64) {
		if err := site.Support.OnAccountDeleted(id); err != nil {
			logger.Error("failed to forget deleted support user", "id", id, "error", err)
		}
	})
	logger.Debug("site opened", "root", root, "backend", backend, "db", dbPath)
	return nil
}
