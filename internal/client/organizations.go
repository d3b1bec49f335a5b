package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// OrganizationsClient implements dt.OrganizationsClient.
type OrganizationsClient struct {
	httpClient *http.Client
}

// NewOrganizationsClient creates a new organizations client.
func NewOrganizationsClient(httpClient *http.Client) *OrganizationsClient {
	return &OrganizationsClient{
		httpClient: httpClient,
	}
}

// Get implements dt.OrganizationsClient.Get.
func (c *OrganizationsClient) Get(ctx context.Context, organizationID string) (*dt.Organization, error) {
	resp, err := c.httpClient.Get(ctx, "/organizations/"+url.PathEscape(organizationID), nil)
	if err != nil {
		return nil, fmt.Errorf("getting organization: %w", err)
	}

	var organization dt.Organization

	err = resp.Decode(&organization)
	if err != nil {
		return nil, fmt.Errorf("parsing organization: %w", err)
	}

	return &organization, nil
}

// List implements dt.OrganizationsClient.List.
func (c *OrganizationsClient) List(ctx context.Context) ([]dt.Organization, error) {
	organizations, err := http.ListAllAs[dt.Organization](ctx, c.httpClient, "/organizations", "organizations", nil, 0)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}

	return organizations, nil
}
