package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"civicportal/internal/models"
)

func (c *cli) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and moderate user accounts",
	}

	var pendingOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := c.svc.Admin.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if pendingOnly {
				pending := users[:0]
				for _, u := range users {
					if !u.IsApproved && !u.IsBlocked {
						pending = append(pending, u)
					}
				}
				users = pending
			}
			return c.printUsers(cmd, users)
		},
	}
	list.Flags().BoolVar(&pendingOnly, "pending", false, "Only users waiting for approval")

	approve := &cobra.Command{
		Use:   "approve <id|email>",
		Short: "Approve a user and send the approval email",
		Args:  cobra.ExactArgs(1),
		RunE: c.userAction(func(ctx context.Context, id string) (models.User, error) {
			return c.svc.Admin.ApproveUser(ctx, id)
		}),
	}

	block := &cobra.Command{
		Use:   "block <id|email>",
		Short: "Block a user and end their sessions",
		Args:  cobra.ExactArgs(1),
		RunE: c.userAction(func(ctx context.Context, id string) (models.User, error) {
			return c.svc.Admin.SetBlocked(ctx, id, true)
		}),
	}

	unblock := &cobra.Command{
		Use:   "unblock <id|email>",
		Short: "Lift a block",
		Args:  cobra.ExactArgs(1),
		RunE: c.userAction(func(ctx context.Context, id string) (models.User, error) {
			return c.svc.Admin.SetBlocked(ctx, id, false)
		}),
	}

	var revoke bool
	promote := &cobra.Command{
		Use:   "promote <id|email>",
		Short: "Grant (or with --revoke, remove) administrator rights",
		Args:  cobra.ExactArgs(1),
		RunE: c.userAction(func(ctx context.Context, id string) (models.User, error) {
			return c.svc.Admin.SetAdmin(ctx, id, !revoke)
		}),
	}
	promote.Flags().BoolVar(&revoke, "revoke", false, "Remove administrator rights instead")

	cmd.AddCommand(list, approve, block, unblock, promote)
	return cmd
}

// userAction resolves the argument to a user id and prints the result of action.
func (c *cli) userAction(action func(ctx context.Context, id string) (models.User, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := c.resolveUserID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		user, err := action(cmd.Context(), id)
		if err != nil {
			return err
		}
		return c.printUsers(cmd, []models.User{user})
	}
}

func (c *cli) resolveUserID(ctx context.Context, ref string) (string, error) {
	if !strings.Contains(ref, "@") {
		return ref, nil
	}
	user, err := c.svc.Users.FindByEmail(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ref, err)
	}
	return user.ID, nil
}

func (c *cli) printUsers(cmd *cobra.Command, users []models.User) error {
	out := cmd.OutOrStdout()
	if c.jsonOut {
		for i := range users {
			users[i].PasswordHash = ""
		}
		return c.printJSON(out, users)
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tSTATE\tADMIN\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
			u.ID, u.Email, truncate(u.Name, 30), userState(u), u.IsAdmin, u.CreatedAt.Format(time.DateOnly))
	}
	return w.Flush()
}

func userState(u models.User) string {
	switch {
	case u.IsBlocked:
		return "blocked"
	case !u.IsApproved:
		return "pending"
	default:
		return "active"
	}
}
