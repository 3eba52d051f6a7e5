package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"devassist/internal/options"
	"devassist/internal/output"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "List and change settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting with its current value",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := settingRows(site.Store)
		if err != nil {
			return err
		}
		formatter().Settings(rows)
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, ok := options.Lookup(args[0])
		if !ok {
			return unknownSetting(args[0])
		}
		value, err := options.GetOr(site.Store, def.Key, def.Default)
		if err != nil {
			return err
		}
		formatter().KeyValue(def.Name, value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Change one setting and apply it",
	Long: `Change one setting and run what depends on it:

  wp-debug, wp-debug-log, wp-debug-display   rewrite wp-config.php
  protect-log                                add or remove the .htaccess rule
  support-user                               'no' deletes the support user
  delete-after-days                          0 keeps the support user forever

Boolean values accept yes/no, true/false, on/off and 1/0.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := options.Lookup(args[0]); !ok {
			return unknownSetting(args[0])
		}
		return applyAndReport(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func settingRows(store options.Store) ([]output.SettingRow, error) {
	rows := make([]output.SettingRow, 0, len(options.Definitions))
	for _, def := range options.Definitions {
		value, err := options.GetOr(store, def.Key, def.Default)
		if err != nil {
			return nil, err
		}
		rows = append(rows, output.SettingRow{Name: def.Name, Value: value, Usage: def.Usage})
	}
	return rows, nil
}

func unknownSetting(name string) error {
	names := make([]string, 0, len(options.Definitions))
	for _, def := range options.Definitions {
		names = append(names, def.Name)
	}
	return fmt.Errorf("unknown setting: %s (valid: %s)", name, strings.Join(names, ", "))
}

// applyAndReport saves a setting through the app so its hooks run. The
// app raises the success notice.
func applyAndReport(cmd *cobra.Command, name, value string) error {
	if _, err := site.ApplySetting(cmd.Context(), name, value); err != nil {
		return err
	}
	commandLogger(cmd).Debug("setting applied", "name", name, "value", value)
	return nil
}
