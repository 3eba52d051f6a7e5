package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"devassist/internal/db"
	"devassist/internal/models"
	"devassist/internal/options"
	"devassist/internal/supportuser"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage devassist configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the site configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(site.Store)
	},
}

var (
	configSiteURL     string
	configEnvironment string
	configRoot        string
)

var configSiteCmd = &cobra.Command{
	Use:   "site",
	Short: "Change where the site lives and how it is reached",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configureSite(site.Store)
	},
}

var configOptionsCmd = &cobra.Command{
	Use:   "options [prefix]",
	Short: "List the raw stored options",
	Long: `List the raw stored options, optionally only those whose key starts
with prefix. The support user password is always shown masked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		return listOptions(db.NewOptionStore(db.GetDB()), prefix)
	},
}

var configSecretBackendCmd = &cobra.Command{
	Use:   "secret-backend <option|keyring>",
	Short: "Choose where the support user password is kept",
	Long: `Choose where the support user password is kept until it is revealed:

  option    in the devassist database (default)
  keyring   in the system keyring (macOS Keychain, Secret Service, Windows
            Credential Manager)

A password that was not revealed yet is moved to the new backend.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return switchSecretBackend(site.Store, args[0])
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSiteCmd)
	configCmd.AddCommand(configOptionsCmd)
	configCmd.AddCommand(configSecretBackendCmd)

	configSiteCmd.Flags().StringVar(&configSiteURL, "url", "", "Public URL of the site")
	configSiteCmd.Flags().StringVar(&configEnvironment, "environment", "", "WordPress environment type")
	configSiteCmd.Flags().StringVar(&configRoot, "site-root", "", "WordPress root directory")
}

func showConfig(store options.Store) error {
	keys := []struct{ label, key, def string }{
		{"site_root", models.OptionSiteRoot, ""},
		{"site_url", models.OptionSiteURL, ""},
		{"environment", models.OptionEnvironment, ""},
		{"secret_backend", models.OptionSecretBackend, models.SecretBackendOption},
		{"initialized_at", models.OptionInitializedAt, ""},
		{"schema_version", models.OptionSchemaVersion, ""},
	}

	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := options.GetOr(store, k.key, k.def)
		if err != nil {
			return err
		}
		values[k.label] = v
	}

	if IsJSONOutput() {
		OutputJSON(values)
		return nil
	}

	fmt.Println("devassist configuration:")
	for _, k := range keys {
		v := values[k.label]
		if v == "" {
			v = "(not configured)"
		}
		fmt.Printf("  %-15s %s\n", k.label+":", v)
	}
	return nil
}

func listOptions(store *db.OptionStore, prefix string) error {
	opts, err := store.List(prefix)
	if err != nil {
		return err
	}
	for i, o := range opts {
		if o.Key == supportuser.KeyPassword && o.Value != "" {
			opts[i].Value = supportuser.Mask
		}
	}

	if IsJSONOutput() {
		values := make(map[string]string, len(opts))
		for _, o := range opts {
			values[o.Key] = o.Value
		}
		OutputJSON(values)
		return nil
	}
	for _, o := range opts {
		fmt.Printf("%s = %s\n", o.Key, o.Value)
	}
	return nil
}

func configureSite(store options.Store) error {
	if configSiteURL == "" && configEnvironment == "" && configRoot == "" {
		return showConfig(store)
	}

	if configSiteURL != "" {
		u, err := url.Parse(configSiteURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("site URL must be absolute, like https://example.com")
		}
		if err := store.Set(models.OptionSiteURL, configSiteURL); err != nil {
			return fmt.Errorf("failed to save site URL: %w", err)
		}
	}
	if configEnvironment != "" {
		if err := store.Set(models.OptionEnvironment, configEnvironment); err != nil {
			return fmt.Errorf("failed to save environment: %w", err)
		}
	}
	if configRoot != "" {
		root, err := resolveRoot(configRoot, nil)
		if err != nil {
			return err
		}
		if err := store.Set(models.OptionSiteRoot, root); err != nil {
			return fmt.Errorf("failed to save site root: %w", err)
		}
	}

	if IsJSONOutput() {
		OutputJSON(map[string]interface{}{"success": true, "message": "Site configuration updated"})
	} else {
		fmt.Println("Site configuration updated")
	}
	return nil
}

// switchSecretBackend stores the new backend and moves a pending secret
// out of the vault it was written to
func switchSecretBackend(store options.Store, backend string) error {
	current, err := options.GetOr(store, models.OptionSecretBackend, models.SecretBackendOption)
	if err != nil {
		return err
	}
	written, err := options.GetOr(store, supportuser.KeySecretBackend, current)
	if err != nil {
		return err
	}
	to, err := supportuser.VaultFor(backend, store)
	if err != nil {
		return err
	}

	if written != backend {
		from, err := supportuser.VaultFor(written, store)
		if err != nil {
			return err
		}
		secret, err := from.Get()
		if err != nil {
			return err
		}
		if secret != "" {
			if err := to.Put(secret); err != nil {
				return err
			}
			if err := store.Set(supportuser.KeySecretBackend, backend); err != nil {
				return fmt.Errorf("failed to save secret backend: %w", err)
			}
			if err := from.Clear(); err != nil {
				return err
			}
		}
	}
	if current != backend {
		if err := store.Set(models.OptionSecretBackend, backend); err != nil {
			return fmt.Errorf("failed to save secret backend: %w", err)
		}
	}

	if IsJSONOutput() {
		OutputJSON(map[string]interface{}{"success": true, "secret_backend": backend})
	} else {
		fmt.Printf("Support user password kept in: %s\n", backend)
	}
	return nil
}
