package cmd

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"projectdw/internal/security"
	"projectdw/internal/ui"
	"projectdw/pkg/errors"
)

func newCredentialsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the loader password outside projectdw.yaml",
		Long: `Store the Snowflake loader password in the OS keyring, or in an encrypted
file under ~/.projectdw/credentials when no keyring is available. Set
PROJECTDW_USE_KEYRING=false to force the encrypted file.`,
	}
	cmd.AddCommand(newCredentialsSetCommand(a), newCredentialsDeleteCommand(a))
	return cmd
}

func newCredentialsSetCommand(a *app) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set [user]",
		Short: "Store the password of the loader user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.credentialUser(args)
			if err != nil {
				return err
			}

			var password string
			if fromStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read password from stdin")
				}
				password = strings.TrimRight(line, "\r\n")
			} else {
				password, err = ui.Password("Password for "+user, "Stored in the OS keyring or an encrypted file")
				if err != nil {
					return err
				}
			}
			if password == "" {
				return errors.ValidationError("password", "", "must not be empty")
			}

			store, err := security.NewCredentialStore()
			if err != nil {
				return err
			}
			if err := store.Set(user, password); err != nil {
				return err
			}
			ui.ShowSuccess("Password stored for " + user)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from standard input")
	return cmd
}

func newCredentialsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [user]",
		Short: "Remove the stored password of the loader user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.credentialUser(args)
			if err != nil {
				return err
			}
			store, err := security.NewCredentialStore()
			if err != nil {
				return err
			}
			if err := store.Delete(user); err != nil {
				return err
			}
			ui.ShowSuccess("Password removed for " + user)
			return nil
		},
	}
}

func (a *app) credentialUser(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if u := a.config.Loader.Snowflake.Username; u != "" {
		return u, nil
	}
	return "", errors.ConfigError("no user given and loader.snowflake.username is empty", "loader.snowflake.username")
}
