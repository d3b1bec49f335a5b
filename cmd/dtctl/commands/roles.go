package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// NewRolesCommand creates the roles command group.
func NewRolesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "roles",
		Aliases: []string{"role"},
		Short:   "Inspect access roles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			roles, err := s.client.Roles().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list roles: %w", err)
			}

			return outputRoles(cmd, roles)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get ROLE",
		Short: "Show a role and its permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			role, err := s.client.Roles().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get role: %w", err)
			}

			w := cmd.OutOrStdout()

			return render(w, role, func() error {
				return renderTable(w, []string{"Property", "Value"}, [][]string{
					{"Role", role.RoleName()},
					{"Display Name", role.DisplayName},
					{"Description", role.Description},
					{"Permissions", strings.Join(role.Permissions, "\n")},
				})
			})
		},
	})

	return cmd
}

func outputRoles(cmd *cobra.Command, roles []dt.Role) error {
	w := cmd.OutOrStdout()

	return render(w, roles, func() error {
		if len(roles) == 0 {
			return renderEmpty(w, "roles")
		}

		rows := make([][]string, 0, len(roles))
		for i := range roles {
			rows = append(rows, []string{roles[i].RoleName(), roles[i].DisplayName, truncate(roles[i].Description)})
		}

		return renderTable(w, []string{"Role", "Display Name", "Description"}, rows)
	})
}
