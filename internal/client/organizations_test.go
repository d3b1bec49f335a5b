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

func TestOrganizationsClient_Get(t *testing.T) {
	t.Parallel()

	tests := []TestGetOperation[dt.Organization]{
		{
			Name:         "found",
			ID:           "o1",
			ExpectedPath: "/organizations/o1",
			Response:     map[string]interface{}{"name": "organizations/o1", "displayName": "Acme"},
			Check: func(t *testing.T, organization *dt.Organization) {
				assert.Equal(t, "o1", organization.ID())
				assert.Equal(t, "Acme", organization.DisplayName)
			},
		},
		{
			Name:         "unknown status",
			ID:           "o2",
			ExpectedPath: "/organizations/o2",
			StatusCode:   http.StatusTeapot,
			WantErr:      dt.ErrUnknown,
		},
	}

	RunGetTests(t, tests, func(c *Client) func(context.Context, string) (*dt.Organization, error) {
		return c.Organizations().Get
	})
}

func TestOrganizationsClient_List(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(pagedHandler(t, "organizations", [][]interface{}{
		{map[string]interface{}{"name": "organizations/o1"}},
		{},
	}, func(r *http.Request) {
		assert.Equal(t, "/organizations", r.URL.Path)
	}))
	defer server.Close()

	organizations, err := NewTestClient(server.URL).Organizations().List(context.Background())
	require.NoError(t, err)
	require.Len(t, organizations, 1)
	assert.Equal(t, "o1", organizations[0].ID())
}
