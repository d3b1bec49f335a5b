package client

import (
	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// Client implements the dt.Client interface.
type Client struct {
	httpClient *http.Client
	config     *dt.Config

	// Resource clients
	projects      *ProjectsClient
	devices       *DevicesClient
	organizations *OrganizationsClient
	roles         *RolesClient
	events        *EventsClient
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *dt.Config) []http.Option {
	httpOpts := []http.Option{
		http.WithLogger(config.Logger),
		http.WithDebug(config.Debug),
		http.WithUserAgent(config.UserAgent),
		http.WithRetryConfig(config.MaxRetries, config.RetryWaitMin, config.RetryWaitMax),
		http.WithTimeout(config.RequestTimeout),
	}

	if config.RequestsPerSecond > 0 {
		httpOpts = append(httpOpts, http.WithRateLimit(config.RequestsPerSecond, constants.DefaultRateLimitBurst))
	}

	if config.Interceptors != nil {
		httpOpts = append(httpOpts, http.WithInterceptors(config.Interceptors))
	}

	return httpOpts
}

// New creates a client from a snapshot of config. Zero fields take their
// defaults. A nil credential sends unauthenticated requests.
func New(config *dt.Config) *Client {
	snapshot := config.WithDefaults()

	var tokenManager http.TokenManager
	if snapshot.Credential != nil {
		tokenManager = snapshot.Credential
	}

	httpClient := http.NewClient(snapshot.BaseURL, tokenManager, createHTTPClientOptions(snapshot)...)

	return NewWithHTTPClient(httpClient, snapshot)
}

// NewWithHTTPClient creates a client over an existing request core. config
// supplies the streaming settings.
func NewWithHTTPClient(httpClient *http.Client, config *dt.Config) *Client {
	client := &Client{
		httpClient: httpClient,
		config:     config.WithDefaults(),
	}

	client.initializeResourceClients()

	return client
}

func (c *Client) initializeResourceClients() {
	c.projects = NewProjectsClient(c.httpClient)
	c.devices = NewDevicesClient(c.httpClient)
	c.organizations = NewOrganizationsClient(c.httpClient)
	c.roles = NewRolesClient(c.httpClient)
	c.events = NewEventsClient(c.httpClient, c.config)
}

// HTTPClient returns the request core shared by every resource client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Projects implements dt.Client.Projects.
func (c *Client) Projects() dt.ProjectsClient {
	return c.projects
}

// Devices implements dt.Client.Devices.
func (c *Client) Devices() dt.DevicesClient {
	return c.devices
}

// Organizations implements dt.Client.Organizations.
func (c *Client) Organizations() dt.OrganizationsClient {
	return c.organizations
}

// Roles implements dt.Client.Roles.
func (c *Client) Roles() dt.RolesClient {
	return c.roles
}

// Events implements dt.Client.Events.
func (c *Client) Events() dt.EventsClient {
	return c.events
}
