package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

func TestProjectsClient_Get(t *testing.T) {
	t.Parallel()

	tests := []TestGetOperation[dt.Project]{
		{
			Name:         "found",
			ID:           "p1",
			ExpectedPath: "/projects/p1",
			Response: map[string]interface{}{
				"name":         "projects/p1",
				"displayName":  "Warehouse",
				"organization": "organizations/o1",
				"sensorCount":  12,
			},
			Check: func(t *testing.T, project *dt.Project) {
				assert.Equal(t, "p1", project.ID())
				assert.Equal(t, "o1", project.OrganizationID())
				assert.Equal(t, "Warehouse", project.DisplayName)
				assert.Equal(t, 12, project.SensorCount)
			},
		},
		{
			Name:         "not found",
			ID:           "missing",
			ExpectedPath: "/projects/missing",
			StatusCode:   http.StatusNotFound,
			Response:     map[string]interface{}{"error": "not found", "code": 404},
			WantErr:      dt.ErrNotFound,
		},
		{
			Name:         "forbidden",
			ID:           "secret",
			ExpectedPath: "/projects/secret",
			StatusCode:   http.StatusForbidden,
			Response:     map[string]interface{}{"error": "forbidden", "code": 403},
			WantErr:      dt.ErrForbidden,
		},
	}

	RunGetTests(t, tests, func(c *Client) func(context.Context, string) (*dt.Project, error) {
		return c.Projects().Get
	})
}

func TestProjectsClient_List(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(pagedHandler(t, "projects", [][]interface{}{
		{map[string]interface{}{"name": "projects/p1"}, map[string]interface{}{"name": "projects/p2"}},
		{map[string]interface{}{"name": "projects/p3"}},
	}, func(r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/projects", r.URL.Path)
		assert.Equal(t, "organizations/o1", r.URL.Query().Get("organization"))
		assert.Equal(t, "ware house", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("pageSize"))
	}))
	defer server.Close()

	projects, err := NewTestClient(server.URL).Projects().List(context.Background(), &dt.ProjectListOptions{
		OrganizationID: "o1",
		Query:          "ware house",
		PageSize:       2,
	})
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "p3", projects[2].ID())
	assert.Equal(t, int32(2), requests.Load())
}

func TestProjectsClient_Create(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "organizations/o1", body["organization"])
		assert.Equal(t, "New project", body["displayName"])

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":         "projects/new",
			"displayName":  body["displayName"],
			"organization": body["organization"],
		})
	}))
	defer server.Close()

	project, err := NewTestClient(server.URL).Projects().Create(context.Background(), &dt.ProjectCreateRequest{
		Organization: "o1",
		DisplayName:  "New project",
	})
	require.NoError(t, err)
	assert.Equal(t, "new", project.ID())
}

func TestProjectsClient_UpdateAndDelete(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/p1", r.URL.Path)

		switch r.Method {
		case http.MethodPatch:
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Renamed", body["displayName"])

			writeJSON(w, http.StatusOK, map[string]interface{}{"name": "projects/p1", "displayName": "Renamed"})
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, map[string]interface{}{})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	projects := NewTestClient(server.URL).Projects()

	project, err := projects.Update(context.Background(), "p1", &dt.ProjectUpdateRequest{DisplayName: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", project.DisplayName)

	require.NoError(t, projects.Delete(context.Background(), "p1"))
}

func TestProjectsClient_DeleteConflict(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeJSON(w, http.StatusConflict, map[string]interface{}{"error": "project is not empty", "code": 409})
	}))
	defer server.Close()

	err := NewTestClient(server.URL).Projects().Delete(context.Background(), "p1")
	require.ErrorIs(t, err, dt.ErrConflict)
	assert.Contains(t, err.Error(), "deleting project")
	assert.Equal(t, int32(1), requests.Load())
}

func TestOrganizationName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "organizations/o1", organizationName("o1"))
	assert.Equal(t, "organizations/o1", organizationName("organizations/o1"))
}
