package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/internal/stream"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// EventsClient implements dt.EventsClient.
type EventsClient struct {
	httpClient *http.Client
	config     *dt.Config
	streamOpts []stream.Option
}

// NewEventsClient creates a new events client. config supplies the ping
// interval, jitter and reconnect ceiling of streams.
func NewEventsClient(httpClient *http.Client, config *dt.Config, opts ...stream.Option) *EventsClient {
	return &EventsClient{
		httpClient: httpClient,
		config:     config.WithDefaults(),
		streamOpts: opts,
	}
}

// History implements dt.EventsClient.History.
func (c *EventsClient) History(ctx context.Context, projectID, deviceID string, opts *dt.EventHistoryOptions) ([]dt.Event, error) {
	query := url.Values{}
	pageSize := 0

	if opts != nil {
		for _, eventType := range opts.EventTypes {
			query.Add("eventTypes", string(eventType))
		}

		startTime, err := dt.ToISO8601(opts.StartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid start time: %w", err)
		}

		if startTime != "" {
			query.Set("startTime", startTime)
		}

		endTime, err := dt.ToISO8601(opts.EndTime)
		if err != nil {
			return nil, fmt.Errorf("invalid end time: %w", err)
		}

		if endTime != "" {
			query.Set("endTime", endTime)
		}

		pageSize = opts.PageSize
	}

	events, err := http.ListAllAs[dt.Event](ctx, c.httpClient, devicePath(projectID, deviceID)+"/events", "events", query, pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing event history: %w", err)
	}

	return events, nil
}

// Stream implements dt.EventsClient.Stream. The subscription connects on the
// first call to Next.
func (c *EventsClient) Stream(ctx context.Context, projectID string, opts *dt.StreamOptions) dt.EventStream {
	return c.Subscribe(ctx, projectID, opts)
}

// StreamDevice implements dt.EventsClient.StreamDevice.
func (c *EventsClient) StreamDevice(ctx context.Context, projectID, deviceID string, opts *dt.StreamOptions) dt.EventStream {
	filtered := dt.StreamOptions{}
	if opts != nil {
		filtered = *opts
	}

	filtered.DeviceIDs = []string{deviceID}

	return c.Subscribe(ctx, projectID, &filtered)
}

// Subscribe is Stream with the concrete subscription type.
func (c *EventsClient) Subscribe(ctx context.Context, projectID string, opts *dt.StreamOptions) *stream.Subscription {
	query := url.Values{}

	if opts != nil {
		for _, deviceID := range opts.DeviceIDs {
			query.Add("device_ids", deviceID)
		}

		for _, deviceType := range opts.DeviceTypes {
			query.Add("device_types", deviceType)
		}

		for _, eventType := range opts.EventTypes {
			query.Add("event_types", string(eventType))
		}

		addLabelFilters(query, opts.LabelFilters)
	}

	maxRetries := c.config.MaxRetries
	if callOpts := dt.CallOptionsFrom(ctx); callOpts != nil && callOpts.MaxRetries > 0 {
		maxRetries = callOpts.MaxRetries
	}

	return stream.Subscribe(ctx, stream.Config{
		HTTPClient:   c.httpClient.HTTPClient(),
		URL:          c.httpClient.BaseURL() + devicesPath(projectID) + ":stream",
		Query:        query,
		Credential:   c.credential(ctx),
		PingInterval: c.config.PingInterval,
		PingJitter:   c.config.PingJitter,
		MaxRetries:   maxRetries,
		UserAgent:    c.httpClient.UserAgent(),
		Logger:       c.config.Logger,
	}, c.streamOpts...)
}

// credential applies per-call overrides to the client's default credential.
func (c *EventsClient) credential(ctx context.Context) stream.TokenSource {
	opts := dt.CallOptionsFrom(ctx)
	if opts != nil {
		if opts.SkipAuth {
			return nil
		}

		if opts.Credential != nil {
			return opts.Credential
		}
	}

	tokenManager := c.httpClient.TokenManager()
	if tokenManager == nil {
		return nil
	}

	return tokenManager
}
