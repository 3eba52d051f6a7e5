package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"devassist/internal/models"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Inspect the site's local accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := accounts.List(cmd.Context())
		if err != nil {
			return err
		}
		formatter().Accounts(list)
		return nil
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an account by id",
	Long: `Delete an account by id. Deleting the support user this way also
forgets its stored login and password.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAccountID(args[0])
		if err != nil {
			return err
		}
		if err := accounts.DeleteAccount(cmd.Context(), id); err != nil {
			return err
		}
		commandLogger(cmd).Info("account deleted", "id", id)
		formatter().Success(fmt.Sprintf("Deleted account %d", id))
		return nil
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAccountID(args[0])
		if err != nil {
			return err
		}
		account, err := accounts.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		formatter().Accounts([]models.Account{*account})
		return nil
	},
}

var accountVerifyCmd = &cobra.Command{
	Use:   "verify <login>",
	Short: "Check a password against an account",
	Long: `Check a password against an account. The password is read from the
first line of standard input, for example:

  printf '%s\n' "$PASSWORD" | dva account verify support_1700000000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret(cmd.InOrStdin())
		if err != nil {
			return err
		}
		ok, err := accounts.Verify(cmd.Context(), args[0], secret)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("password does not match account %s", args[0])
		}
		formatter().Success(fmt.Sprintf("Password matches account %s", args[0]))
		return nil
	},
}

func parseAccountID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid account id: %s", arg)
	}
	return id, nil
}

// readSecret returns the first line of r without its line break
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password on standard input")
	}
	return line, nil
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	accountCmd.AddCommand(accountVerifyCmd)
}
