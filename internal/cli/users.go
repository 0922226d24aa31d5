package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/spf13/cobra"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered users",
			RunE: func(cmd *cobra.Command, _ []string) error {
				users, err := a.users.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tROLE")
				for _, u := range users {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Email, u.Role)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "set-role <email> <user|admin>",
			Short: "Change a user's role",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				role := args[1]
				if role != identity.RoleUser && role != identity.RoleAdmin {
					return fmt.Errorf("unknown role %q: want %s or %s", role, identity.RoleUser, identity.RoleAdmin)
				}
				if err := a.users.SetRole(cmd.Context(), args[0], role); err != nil {
					return fmt.Errorf("set role for %s: %w", args[0], err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], role)
				return nil
			},
		},
	)
	return cmd
}
