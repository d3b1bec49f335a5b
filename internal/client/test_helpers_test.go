package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// NewTestClient creates a new test client with the given base URL.
func NewTestClient(baseURL string) *Client {
	return New(&dt.Config{BaseURL: baseURL})
}

// TestGetOperation represents a generic get operation test case.
type TestGetOperation[TResponse any] struct {
	Name         string
	ID           string
	ExpectedPath string
	StatusCode   int
	Response     interface{}
	WantErr      error
	Check        func(t *testing.T, result *TResponse)
}

// RunGetTests runs a series of get operation tests.
func RunGetTests[TResponse any](
	t *testing.T,
	tests []TestGetOperation[TResponse],
	getFunc func(*Client) func(context.Context, string) (*TResponse, error),
) {
	t.Helper()

	for _, testCase := range tests {
		t.Run(testCase.Name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, testCase.ExpectedPath, request.URL.EscapedPath())
				assert.Equal(t, http.MethodGet, request.Method)

				writeJSON(writer, testCase.StatusCode, testCase.Response)
			}))
			defer server.Close()

			result, err := getFunc(NewTestClient(server.URL))(context.Background(), testCase.ID)

			if testCase.WantErr != nil {
				require.ErrorIs(t, err, testCase.WantErr)
				assert.Nil(t, result)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)

			if testCase.Check != nil {
				testCase.Check(t, result)
			}
		})
	}
}

func writeJSON(writer http.ResponseWriter, statusCode int, body interface{}) {
	writer.Header().Set("Content-Type", "application/json")

	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	writer.WriteHeader(statusCode)

	if body != nil {
		_ = json.NewEncoder(writer).Encode(body)
	}
}

// pagedHandler serves items under key in pages, chaining them with numeric
// page tokens. onRequest, when set, inspects every request.
func pagedHandler(t *testing.T, key string, pages [][]interface{}, onRequest func(*http.Request)) http.HandlerFunc {
	t.Helper()

	return func(writer http.ResponseWriter, request *http.Request) {
		if onRequest != nil {
			onRequest(request)
		}

		index := 0
		if token := request.URL.Query().Get("pageToken"); token != "" {
			parsed, err := strconv.Atoi(token)
			assert.NoError(t, err)

			index = parsed
		}

		next := ""
		if index+1 < len(pages) {
			next = strconv.Itoa(index + 1)
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{
			key:             pages[index],
			"nextPageToken": next,
		})
	}
}
