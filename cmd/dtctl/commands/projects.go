package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// NewProjectsCommand creates the projects command group.
func NewProjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage projects",
		Long:    "List, inspect, create, update and delete projects",
	}

	cmd.AddCommand(newProjectsListCommand())
	cmd.AddCommand(newProjectsGetCommand())
	cmd.AddCommand(newProjectsCreateCommand())
	cmd.AddCommand(newProjectsUpdateCommand())
	cmd.AddCommand(newProjectsDeleteCommand())

	return cmd
}

func newProjectsListCommand() *cobra.Command {
	var opts dt.ProjectListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			projects, err := s.client.Projects().List(cmd.Context(), &opts)
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			return outputProjects(cmd, projects)
		},
	}

	cmd.Flags().StringVar(&opts.OrganizationID, "organization", "", "only list projects in this organization")
	cmd.Flags().StringVar(&opts.Query, "query", "", "free text search")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "results per request (server default when 0)")

	return cmd
}

func newProjectsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get PROJECT",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			project, err := s.client.Projects().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}

			return outputProject(cmd, project)
		},
	}
}

func newProjectsCreateCommand() *cobra.Command {
	var req dt.ProjectCreateRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			project, err := s.client.Projects().Create(cmd.Context(), &req)
			if err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			return outputProject(cmd, project)
		},
	}

	cmd.Flags().StringVar(&req.Organization, "organization", "", "owning organization id")
	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "project display name")
	_ = cmd.MarkFlagRequired("organization")
	_ = cmd.MarkFlagRequired("display-name")

	return cmd
}

func newProjectsUpdateCommand() *cobra.Command {
	var req dt.ProjectUpdateRequest

	cmd := &cobra.Command{
		Use:   "update PROJECT",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			project, err := s.client.Projects().Update(cmd.Context(), args[0], &req)
			if err != nil {
				return fmt.Errorf("failed to update project: %w", err)
			}

			return outputProject(cmd, project)
		},
	}

	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "new display name")
	_ = cmd.MarkFlagRequired("display-name")

	return cmd
}

func newProjectsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PROJECT",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			err = s.client.Projects().Delete(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", args[0])

			return nil
		},
	}
}

func outputProjects(cmd *cobra.Command, projects []dt.Project) error {
	w := cmd.OutOrStdout()

	return render(w, projects, func() error {
		if len(projects) == 0 {
			return renderEmpty(w, "projects")
		}

		rows := make([][]string, 0, len(projects))
		for i := range projects {
			project := &projects[i]
			rows = append(rows, []string{
				project.ID(),
				truncate(project.DisplayName),
				project.OrganizationID(),
				strconv.Itoa(project.SensorCount),
				strconv.Itoa(project.CloudConnectorCount),
			})
		}

		return renderTable(w, []string{"ID", "Display Name", "Organization", "Sensors", "Cloud Connectors"}, rows)
	})
}

func outputProject(cmd *cobra.Command, project *dt.Project) error {
	w := cmd.OutOrStdout()

	return render(w, project, func() error {
		return renderTable(w, []string{"Property", "Value"}, [][]string{
			{"ID", project.ID()},
			{"Name", project.Name},
			{"Display Name", project.DisplayName},
			{"Organization", orNone(project.OrganizationDisplayName) + " (" + project.OrganizationID() + ")"},
			{"Sensors", strconv.Itoa(project.SensorCount)},
			{"Cloud Connectors", strconv.Itoa(project.CloudConnectorCount)},
			{"Inventory", strconv.FormatBool(project.Inventory)},
		})
	})
}
