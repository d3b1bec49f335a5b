package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// RolesClient implements dt.RolesClient.
type RolesClient struct {
	httpClient *http.Client
}

// NewRolesClient creates a new roles client.
func NewRolesClient(httpClient *http.Client) *RolesClient {
	return &RolesClient{
		httpClient: httpClient,
	}
}

// Get implements dt.RolesClient.Get. role may be a short name such as
// "project.user" or a full "roles/project.user" resource name.
func (c *RolesClient) Get(ctx context.Context, role string) (*dt.Role, error) {
	role = strings.TrimPrefix(role, "roles/")

	resp, err := c.httpClient.Get(ctx, "/roles/"+url.PathEscape(role), nil)
	if err != nil {
		return nil, fmt.Errorf("getting role: %w", err)
	}

	var result dt.Role

	err = resp.Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("parsing role: %w", err)
	}

	return &result, nil
}

// List implements dt.RolesClient.List.
func (c *RolesClient) List(ctx context.Context) ([]dt.Role, error) {
	roles, err := http.ListAllAs[dt.Role](ctx, c.httpClient, "/roles", "roles", nil, 0)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}

	return roles, nil
}
