package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	dthttp "github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pagedServer struct {
	mu      sync.Mutex
	queries []url.Values
	pages   map[string]string
}

func newPagedServer(t *testing.T, pages map[string]string) (*pagedServer, *httptest.Server) {
	t.Helper()

	paged := &pagedServer{pages: pages}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		paged.mu.Lock()
		paged.queries = append(paged.queries, request.URL.Query())
		paged.mu.Unlock()

		body, ok := pages[request.URL.Query().Get("pageToken")]
		if !ok {
			writer.WriteHeader(http.StatusBadRequest)

			return
		}

		_, _ = writer.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return paged, server
}

func (p *pagedServer) Queries() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]url.Values(nil), p.queries...)
}

func TestListAll_TwoPages(t *testing.T) {
	t.Parallel()

	paged, server := newPagedServer(t, map[string]string{
		"":    `{"devices":[{"name":"d1"},{"name":"d2"}],"nextPageToken":"abc"}`,
		"abc": `{"devices":[{"name":"d3"}],"nextPageToken":""}`,
	})

	client := dthttp.NewClient(server.URL, nil)
	query := url.Values{"query": {"fridge"}}

	items, err := client.ListAll(context.Background(), "/projects/p1/devices", "devices", query, 2)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.JSONEq(t, `{"name":"d1"}`, string(items[0]))
	assert.JSONEq(t, `{"name":"d3"}`, string(items[2]))

	queries := paged.Queries()
	require.Len(t, queries, 2)
	assert.Equal(t, "2", queries[0].Get("pageSize"))
	assert.Empty(t, queries[0].Get("pageToken"))
	assert.Equal(t, "fridge", queries[0].Get("query"))
	assert.Equal(t, "abc", queries[1].Get("pageToken"))
	assert.Equal(t, "2", queries[1].Get("pageSize"))

	// The caller's query is never mutated.
	assert.Equal(t, url.Values{"query": {"fridge"}}, query)
}

func TestListAll_MissingTokenStops(t *testing.T) {
	t.Parallel()

	paged, server := newPagedServer(t, map[string]string{
		"": `{"roles":[{"name":"roles/project.user"}]}`,
	})

	items, err := dthttp.NewClient(server.URL, nil).ListAll(context.Background(), "/roles", "roles", nil, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Len(t, paged.Queries(), 1)
	assert.Empty(t, paged.Queries()[0].Get("pageSize"))
}

func TestListAll_EmptyPage(t *testing.T) {
	t.Parallel()

	_, server := newPagedServer(t, map[string]string{
		"": `{"nextPageToken":""}`,
	})

	items, err := dthttp.NewClient(server.URL, nil).ListAll(context.Background(), "/roles", "roles", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListAll_ErrorPropagates(t *testing.T) {
	t.Parallel()

	_, server := newPagedServer(t, map[string]string{
		"": `{"devices":[{"name":"d1"}],"nextPageToken":"missing"}`,
	})

	_, err := dthttp.NewClient(server.URL, nil).ListAll(context.Background(), "/devices", "devices", nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, dt.ErrBadRequest)
}

func TestPager_Lazy(t *testing.T) {
	t.Parallel()

	paged, server := newPagedServer(t, map[string]string{
		"":   `{"projects":[{"name":"projects/a"}],"nextPageToken":"p2"}`,
		"p2": `{"projects":[{"name":"projects/b"}],"nextPageToken":""}`,
	})

	pager := dthttp.NewPager(dthttp.NewClient(server.URL, nil), "/projects", "projects", nil, 1)
	ctx := context.Background()

	assert.True(t, pager.HasNext())
	assert.Empty(t, paged.Queries())

	first, err := pager.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Len(t, paged.Queries(), 1)
	assert.True(t, pager.HasNext())

	second, err := pager.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"projects/b"}`, string(second[0]))
	assert.False(t, pager.HasNext())
	assert.Equal(t, 2, pager.Pages())

	_, err = pager.Next(ctx)
	require.ErrorIs(t, err, dt.ErrNoMoreItems)
	assert.Len(t, paged.Queries(), 2)
}

func TestPager_AllStopsEarly(t *testing.T) {
	t.Parallel()

	paged, server := newPagedServer(t, map[string]string{
		"":   `{"projects":[{"name":"projects/a"}],"nextPageToken":"p2"}`,
		"p2": `{"projects":[{"name":"projects/b"}],"nextPageToken":""}`,
	})

	pager := dthttp.NewPager(dthttp.NewClient(server.URL, nil), "/projects", "projects", nil, 0)

	for page, err := range pager.All(context.Background()) {
		require.NoError(t, err)
		assert.Len(t, page, 1)

		break
	}

	assert.Len(t, paged.Queries(), 1)
}

func TestTypedPager(t *testing.T) {
	t.Parallel()

	_, server := newPagedServer(t, map[string]string{
		"": `{"organizations":[{"name":"organizations/o1","displayName":"Acme"}]}`,
	})

	client := dthttp.NewClient(server.URL, nil)

	orgs, err := dthttp.ListAllAs[dt.Organization](context.Background(), client, "/organizations", "organizations", nil, 0)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "o1", orgs[0].ID())

	pager := dthttp.NewTypedPager[dt.Organization](client, "/organizations", "organizations", nil, 0)
	page, err := pager.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme", page[0].DisplayName)
	assert.False(t, pager.HasNext())
}

func TestPager_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, server := newPagedServer(t, map[string]string{"": `{"devices":[`})

	_, err := dthttp.NewClient(server.URL, nil).ListAll(context.Background(), "/devices", "devices", nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, dt.ErrFormatError)
}
