package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// NewOrgsCommand creates the organizations command group.
func NewOrgsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"organizations", "org"},
		Short:   "Inspect organizations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			organizations, err := s.client.Organizations().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list organizations: %w", err)
			}

			return outputOrganizations(cmd, organizations)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get ORGANIZATION",
		Short: "Show an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			organization, err := s.client.Organizations().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get organization: %w", err)
			}

			return outputOrganizations(cmd, []dt.Organization{*organization})
		},
	})

	return cmd
}

func outputOrganizations(cmd *cobra.Command, organizations []dt.Organization) error {
	w := cmd.OutOrStdout()

	return render(w, organizations, func() error {
		if len(organizations) == 0 {
			return renderEmpty(w, "organizations")
		}

		rows := make([][]string, 0, len(organizations))
		for i := range organizations {
			rows = append(rows, []string{organizations[i].ID(), truncate(organizations[i].DisplayName)})
		}

		return renderTable(w, []string{"ID", "Display Name"}, rows)
	})
}
