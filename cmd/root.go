package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"devassist/internal/app"
	"devassist/internal/db"
	"devassist/internal/notice"
	"devassist/internal/output"
)

var (
	Version    = "0.1.0"
	jsonOutput bool
	siteRoot   string

	logger   = newLogger(os.Stderr, os.Getenv(EnvLogLevel))
	notices  = newNotices(os.Getenv(EnvLogLevel))
	site     *app.App
	accounts *db.AccountDirectory
)

// commandsExemptFromDB lists commands that don't require database initialization
var commandsExemptFromDB = map[string]bool{
	"init":       true,
	"version":    true,
	"help":       true,
	"completion": true,
}

// commandsExemptFromUpkeep skip the per-request upkeep, since they run
// their own lifecycle step
var commandsExemptFromUpkeep = map[string]bool{
	"activate":   true,
	"deactivate": true,
}

var rootCmd = &cobra.Command{
	Use:   "dva",
	Short: "devassist - debug and support access assistant for WordPress sites",
	Long: `devassist (dva) manages the WordPress debug constants in wp-config.php,
protects debug.log from direct access and hands out a temporary support
administrator that expires on its own.

QUICK START:
  dva init --site-url https://example.com   # Initialize next to wp-config.php
  dva activate                              # Record original state, apply defaults
  dva settings set wp-debug yes             # Turn WP_DEBUG on
  dva status                                # Overview of debug and support user
  dva support create                        # Add a temporary administrator
  dva support reveal                        # Show its password (only once)
  dva deactivate                            # Put everything back

SETTINGS: wp-debug, wp-debug-log, wp-debug-display, protect-log,
          support-user, delete-after-days, reset

Every command first deletes an expired support user and syncs the debug
constants with the stored settings.

JSON OUTPUT: Add --json flag to any command for machine-readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if commandsExemptFromDB[cmd.Name()] {
			return nil
		}
		if err := db.EnsureInitialized(); err != nil {
			return err
		}
		if err := openSite(); err != nil {
			return err
		}
		if commandsExemptFromUpkeep[cmd.Name()] {
			return nil
		}
		_, err := site.AdminRequest(cmd.Context())
		return err
	},
}

func Execute() {
	defer db.CloseDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	drained := notices.Drain()
	output.New(jsonOutput).Notices(drained)
	if err != nil {
		logger.Debug("command failed", "error", err)
		if jsonOutput {
			OutputJSON(map[string]interface{}{"error": true, "message": err.Error()})
		} else if !noticed(drained, err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		db.CloseDB()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&siteRoot, "root", "", "WordPress root directory (default: $DVA_ROOT, the stored site root, or the current directory)")
	rootCmd.Version = Version
}

func OutputJSON(data interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(data)
}

func IsJSONOutput() bool {
	return jsonOutput
}

// noticed reports whether err was already printed as an error notice
func noticed(drained []notice.Notice, err error) bool {
	for _, n := range drained {
		if n.Level == notice.Error && n.Message == err.Error() {
			return true
		}
	}
	return false
}

func formatter() output.Formatter {
	return output.New(jsonOutput)
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	return logger.With("command", cmd.CommandPath())
}
