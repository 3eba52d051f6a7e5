package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"devassist/internal/options"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Inspect and sync the WordPress debug constants",
}

var debugStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live, desired and original value of each debug constant",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := options.Load(site.Store)
		if err != nil {
			return err
		}
		st, err := site.Debug.Status(s)
		if err != nil {
			return err
		}
		formatter().DebugStatus(st)
		return nil
	},
}

var debugSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rewrite wp-config.php so the constants match the settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := options.Load(site.Store)
		if err != nil {
			return err
		}
		changed, err := site.Debug.Sync(s)
		if err != nil {
			return err
		}
		if changed {
			formatter().Success(fmt.Sprintf("Updated %s", site.Debug.Paths.Config))
		} else {
			formatter().Info("Constants already match the settings")
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Manage wp-content/debug.log",
}

var logProtectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Deny direct HTTP access to debug.log (sets protect-log=yes)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyAndReport(cmd, options.NameProtectLog, "yes")
	},
}

var logUnprotectCmd = &cobra.Command{
	Use:   "unprotect",
	Short: "Allow direct HTTP access to debug.log again (sets protect-log=no)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyAndReport(cmd, options.NameProtectLog, "no")
	},
}

var logDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete debug.log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := site.Debug.DeleteLog(); err != nil {
			return err
		}
		commandLogger(cmd).Info("log deleted", "path", site.Debug.Paths.Log)
		formatter().Success(fmt.Sprintf("Deleted %s", site.Debug.Paths.Log))
		return nil
	},
}

var logDirectivesCmd = &cobra.Command{
	Use:   "directives",
	Short: "Print the .htaccess rule used to protect debug.log",
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsJSONOutput() {
			OutputJSON(map[string]interface{}{"directives": site.Debug.Directives()})
			return nil
		}
		fmt.Println(site.Debug.Directives())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugStatusCmd)
	debugCmd.AddCommand(debugSyncCmd)

	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logProtectCmd)
	logCmd.AddCommand(logUnprotectCmd)
	logCmd.AddCommand(logDeleteCmd)
	logCmd.AddCommand(logDirectivesCmd)
}
