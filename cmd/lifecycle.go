package cmd

import (
	"github.com/spf13/cobra"
)

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Record the original site state and store default settings",
	Long: `Store default settings (existing values are kept), record the current
state of WP_DEBUG, WP_DEBUG_LOG, WP_DEBUG_DISPLAY and debug.log so they can
be restored later, and protect the log when protect-log is on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := site.Activate(cmd.Context()); err != nil {
			return err
		}
		formatter().Success("Site activated")
		return nil
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Remove the log protection and, with reset on, restore the original state",
	Long: `Always removes the debug.log protection block from .htaccess.

When the reset setting is yes (the default) it also restores the original
debug constants, deletes debug.log if it did not exist before activation,
deletes the support user and forgets every setting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := site.Deactivate(cmd.Context()); err != nil {
			return err
		}
		formatter().Success("Site deactivated")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the debug and support user overview",
	RunE: func(cmd *cobra.Command, args []string) error {
		ov, err := site.Status(cmd.Context())
		if err != nil {
			return err
		}
		formatter().Overview(ov)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(statusCmd)
}
