package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"portfolio.admin/internal/session"
)

func newLoginCmd(opts *options) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify the admin secret and start a session",
		Long: `Verify the admin secret and start a session.

The secret is read from --secret, then PORTFOLIO_ADMIN_SECRET, then the
first line of stdin. Only the server-issued token is written to disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("PORTFOLIO_ADMIN_SECRET")
			}
			if secret == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Admin secret: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading secret: %w", err)
				}
				secret = strings.TrimRight(line, "\r\n")
			}

			_, m := opts.connect(cmd)
			if err := m.Login(contextOf(cmd), secret); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "admin secret")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and revoke its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m := opts.connect(cmd)
			ctx := contextOf(cmd)
			if _, err := m.Restore(ctx); err != nil {
				return err
			}
			if err := m.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m := opts.connect(cmd)
			state, err := m.Restore(contextOf(cmd))
			if err != nil {
				return err
			}
			if state == session.Authenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "authenticated")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
			}
			return nil
		},
	}
}
