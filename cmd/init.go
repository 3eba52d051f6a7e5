package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"devassist/internal/db"
	"devassist/internal/models"
	"devassist/internal/options"
	"devassist/internal/supportuser"
)

var (
	forceInit   bool
	initSiteURL string
	initEnvType string

	initSecretBackend string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize devassist in the current directory",
	Long: `Create the .devassist data directory and record where the WordPress
site lives. Run it once from the site root (or pass --root), then run
'dva activate'.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Force reinitialize")
	initCmd.Flags().StringVar(&initSiteURL, "site-url", "", "Public URL of the site")
	initCmd.Flags().StringVar(&initEnvType, "environment", "", "WordPress environment type (production, staging, development, local)")
	initCmd.Flags().StringVar(&initSecretBackend, "secret-backend", "", "Where the support user password is kept: option or keyring (change later with 'dva config secret-backend')")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	dataDir := filepath.Join(cwd, db.DataDir)
	dbPath := filepath.Join(dataDir, db.DBFileName)

	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		if !forceInit {
			return fmt.Errorf("already initialized. Use --force to reinitialize")
		}
		if err := os.RemoveAll(dataDir); err != nil {
			return fmt.Errorf("failed to remove existing data directory: %w", err)
		}
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	database, err := db.InitDB(dbPath)
	if err != nil {
		return err
	}
	store := db.NewOptionStore(database)

	root, err := resolveRoot(siteRoot, nil)
	if err != nil {
		return err
	}
	backend := initSecretBackend
	if backend == "" {
		backend = models.SecretBackendOption
	}
	if _, err := supportuser.VaultFor(backend, store); err != nil {
		return err
	}

	values := []struct{ key, value string }{
		{models.OptionSchemaVersion, db.SchemaVersion},
		{models.OptionInitializedAt, time.Now().Format(time.RFC3339)},
		{models.OptionSiteRoot, root},
		{models.OptionSecretBackend, backend},
	}
	if initSiteURL != "" {
		values = append(values, struct{ key, value string }{models.OptionSiteURL, initSiteURL})
	}
	if initEnvType != "" {
		values = append(values, struct{ key, value string }{models.OptionEnvironment, initEnvType})
	}
	for _, v := range values {
		if err := store.Set(v.key, v.value); err != nil {
			return fmt.Errorf("failed to save %s: %w", v.key, err)
		}
	}

	if IsJSONOutput() {
		OutputJSON(map[string]interface{}{"success": true, "path": dataDir, "root": root, "secret_backend": backend})
		return nil
	}

	fmt.Printf("devassist initialized in %s/\n", db.DataDir)
	fmt.Printf("Site root: %s\n", root)

	if _, err := os.Stat(filepath.Join(root, "wp-config.php")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: no wp-config.php found in %s\n", root)
	}
	if options.IsDevEnvironment(initSiteURL, initEnvType) {
		fmt.Println("Development site detected: the support user will be disabled by default.")
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  dva activate                    Record the original state and apply defaults")
	fmt.Println("  dva status                      Show the debug and support user overview")
	return nil
}
