package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"devassist/internal/models"
	"devassist/internal/options"
	"devassist/internal/supportuser"
)

var (
	supportShareEmail string
	supportExtendNow  bool
)

var supportCmd = &cobra.Command{
	Use:   "support",
	Short: "Manage the temporary support administrator",
	Long: `Manage the temporary support administrator.

The password is generated on create and can be displayed exactly once, with
'reveal' or by composing a hand-off message with 'share'. After that it is
masked; recreate the user to get a new one.

With delete-after-days > 0 the user is deleted automatically once that many
days have passed since creation. During its last day it can be extended.`,
}

var supportStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the support user without revealing the password",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := options.Load(site.Store)
		if err != nil {
			return err
		}
		sum, err := site.Support.Summarize(s)
		if err != nil {
			return err
		}
		formatter().SupportSummary(sum)
		return nil
	},
}

var supportCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the support user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSupportEnabled(); err != nil {
			return err
		}
		c, err := site.Support.Create(cmd.Context())
		if err != nil {
			return err
		}
		printCreated(c)
		return nil
	},
}

var supportRecreateCmd = &cobra.Command{
	Use:   "recreate",
	Short: "Delete the support user and create a new one with a fresh password",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSupportEnabled(); err != nil {
			return err
		}
		c, err := site.Support.Recreate(cmd.Context())
		if err != nil {
			return err
		}
		printCreated(c)
		return nil
	},
}

var supportRevealCmd = &cobra.Command{
	Use:   "reveal",
	Short: "Display the support user's password (only the first time)",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := site.Support.Reveal()
		if err != nil {
			return err
		}
		c, err := site.Support.Load()
		if err != nil {
			return err
		}
		formatter().Credential(c.Login, secret)
		return nil
	},
}

var supportShareCmd = &cobra.Command{
	Use:   "share",
	Short: "Compose a credential hand-off message and record the recipient",
	Long: `Compose a message holding the login and password for the given address
and record that address on the support account. This displays the password,
so it only works while the password was never shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if supportShareEmail == "" {
			return fmt.Errorf("--email is required")
		}
		siteURL, err := options.GetOr(site.Store, models.OptionSiteURL, "")
		if err != nil {
			return err
		}
		msg, err := site.Support.Share(cmd.Context(), supportShareEmail, siteURL)
		if err != nil {
			return err
		}
		formatter().ShareMessage(msg)
		return nil
	},
}

var supportExtendCmd = &cobra.Command{
	Use:   "extend",
	Short: "Restart the expiry window of the support user",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := options.Load(site.Store)
		if err != nil {
			return err
		}
		if !supportExtendNow {
			ok, err := site.Support.AllowedContinueExistence(s)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("the support user can only be extended during its last day (use --force to extend anyway)")
			}
		}
		if err := site.Support.Extend(); err != nil {
			return err
		}
		days, err := site.Support.DaysRemaining(s)
		if err != nil {
			return err
		}
		if days == 0 {
			formatter().KeyValue("auto_delete", "off")
			return nil
		}
		formatter().KeyValue("days_remaining", fmt.Sprint(days))
		return nil
	},
}

var supportDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the support user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := site.Support.Load()
		if err != nil {
			return err
		}
		if c.State() == supportuser.Absent {
			return supportuser.ErrNoSupportUser
		}
		return site.Support.Delete(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(supportCmd)
	supportCmd.AddCommand(supportStatusCmd)
	supportCmd.AddCommand(supportCreateCmd)
	supportCmd.AddCommand(supportRecreateCmd)
	supportCmd.AddCommand(supportRevealCmd)
	supportCmd.AddCommand(supportShareCmd)
	supportCmd.AddCommand(supportExtendCmd)
	supportCmd.AddCommand(supportDeleteCmd)

	supportShareCmd.Flags().StringVarP(&supportShareEmail, "email", "e", "", "Recipient address")
	supportExtendCmd.Flags().BoolVarP(&supportExtendNow, "force", "f", false, "Extend even before the last day")
}

func requireSupportEnabled() error {
	s, err := options.Load(site.Store)
	if err != nil {
		return err
	}
	if !s.SupportUserEnabled {
		return fmt.Errorf("the support user is disabled. Run 'dva settings set %s yes' first", options.NameSupportUser)
	}
	return nil
}

func printCreated(c supportuser.Credential) {
	if IsJSONOutput() {
		OutputJSON(c)
		return
	}
	fmt.Printf("Login:    %s\n", c.Login)
	fmt.Printf("ID:       %d\n", c.ID)
	fmt.Println("\nNext steps:")
	fmt.Println("  dva support reveal              Display the password once")
	fmt.Println("  dva support share -e <email>    Compose a hand-off message instead")
}
