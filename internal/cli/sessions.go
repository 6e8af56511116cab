package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) sessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain login sessions",
	}

	reap := &cobra.Command{
		Use:   "reap",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.svc.Sessions.Reap(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired session(s).\n", n)
			return nil
		},
	}

	var userRef string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "End every session of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.resolveUserID(cmd.Context(), userRef)
			if err != nil {
				return err
			}
			n, err := c.svc.Sessions.DeleteForUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s).\n", n)
			return nil
		},
	}
	revoke.Flags().StringVar(&userRef, "user", "", "User id or email")
	_ = revoke.MarkFlagRequired("user")

	cmd.AddCommand(reap, revoke)
	return cmd
}
