package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

func TestRolesClient_Get(t *testing.T) {
	t.Parallel()

	role := map[string]interface{}{
		"name":        "roles/project.user",
		"displayName": "Project user",
		"permissions": []string{"device.view"},
	}

	tests := []TestGetOperation[dt.Role]{
		{
			Name:         "short name",
			ID:           "project.user",
			ExpectedPath: "/roles/project.user",
			Response:     role,
			Check: func(t *testing.T, result *dt.Role) {
				assert.Equal(t, "project.user", result.RoleName())
				assert.Equal(t, []string{"device.view"}, result.Permissions)
			},
		},
		{
			Name:         "resource name",
			ID:           "roles/project.user",
			ExpectedPath: "/roles/project.user",
			Response:     role,
		},
	}

	RunGetTests(t, tests, func(c *Client) func(context.Context, string) (*dt.Role, error) {
		return c.Roles().Get
	})
}

func TestRolesClient_List(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(pagedHandler(t, "roles", [][]interface{}{
		{
			map[string]interface{}{"name": "roles/project.user"},
			map[string]interface{}{"name": "roles/project.developer"},
		},
	}, func(r *http.Request) {
		assert.Equal(t, "/roles", r.URL.Path)
	}))
	defer server.Close()

	roles, err := NewTestClient(server.URL).Roles().List(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "project.developer", roles[1].RoleName())
}
