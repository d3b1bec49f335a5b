package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

const organizationPrefix = "organizations/"

// ProjectsClient implements dt.ProjectsClient.
type ProjectsClient struct {
	httpClient *http.Client
}

// NewProjectsClient creates a new projects client.
func NewProjectsClient(httpClient *http.Client) *ProjectsClient {
	return &ProjectsClient{
		httpClient: httpClient,
	}
}

// Get implements dt.ProjectsClient.Get.
func (c *ProjectsClient) Get(ctx context.Context, projectID string) (*dt.Project, error) {
	resp, err := c.httpClient.Get(ctx, "/projects/"+url.PathEscape(projectID), nil)
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}

	var project dt.Project

	err = resp.Decode(&project)
	if err != nil {
		return nil, fmt.Errorf("parsing project: %w", err)
	}

	return &project, nil
}

// List implements dt.ProjectsClient.List.
func (c *ProjectsClient) List(ctx context.Context, opts *dt.ProjectListOptions) ([]dt.Project, error) {
	query := url.Values{}
	pageSize := 0

	if opts != nil {
		if opts.OrganizationID != "" {
			query.Set("organization", organizationName(opts.OrganizationID))
		}

		if opts.Query != "" {
			query.Set("query", opts.Query)
		}

		pageSize = opts.PageSize
	}

	projects, err := http.ListAllAs[dt.Project](ctx, c.httpClient, "/projects", "projects", query, pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	return projects, nil
}

// Create implements dt.ProjectsClient.Create.
func (c *ProjectsClient) Create(ctx context.Context, req *dt.ProjectCreateRequest) (*dt.Project, error) {
	body := dt.ProjectCreateRequest{
		Organization: organizationName(req.Organization),
		DisplayName:  req.DisplayName,
	}

	resp, err := c.httpClient.Post(ctx, "/projects", body)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	var project dt.Project

	err = resp.Decode(&project)
	if err != nil {
		return nil, fmt.Errorf("parsing project response: %w", err)
	}

	return &project, nil
}

// Update implements dt.ProjectsClient.Update.
func (c *ProjectsClient) Update(ctx context.Context, projectID string, req *dt.ProjectUpdateRequest) (*dt.Project, error) {
	resp, err := c.httpClient.Patch(ctx, "/projects/"+url.PathEscape(projectID), req)
	if err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}

	var project dt.Project

	err = resp.Decode(&project)
	if err != nil {
		return nil, fmt.Errorf("parsing project response: %w", err)
	}

	return &project, nil
}

// Delete implements dt.ProjectsClient.Delete.
func (c *ProjectsClient) Delete(ctx context.Context, projectID string) error {
	_, err := c.httpClient.Delete(ctx, "/projects/"+url.PathEscape(projectID))
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	return nil
}

// organizationName accepts either an id or a full resource name.
func organizationName(organization string) string {
	if strings.HasPrefix(organization, organizationPrefix) {
		return organization
	}

	return organizationPrefix + organization
}
