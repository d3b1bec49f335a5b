package dt

import (
	"context"
)

// Client provides access to every resource client.
type Client interface {
	Projects() ProjectsClient
	Devices() DevicesClient
	Organizations() OrganizationsClient
	Roles() RolesClient
	Events() EventsClient
}

// ProjectsClient defines operations for projects.
type ProjectsClient interface {
	Get(ctx context.Context, projectID string) (*Project, error)
	List(ctx context.Context, opts *ProjectListOptions) ([]Project, error)
	Create(ctx context.Context, req *ProjectCreateRequest) (*Project, error)
	Update(ctx context.Context, projectID string, req *ProjectUpdateRequest) (*Project, error)
	Delete(ctx context.Context, projectID string) error
}

// DevicesClient defines operations for devices.
type DevicesClient interface {
	Get(ctx context.Context, projectID, deviceID string) (*Device, error)
	List(ctx context.Context, projectID string, opts *DeviceListOptions) ([]Device, error)
	ListPages(projectID string, opts *DeviceListOptions) Pager[Device]
	BatchUpdateLabels(ctx context.Context, projectID string, deviceIDs []string, set map[string]string, remove []string) error
	SetLabel(ctx context.Context, projectID, deviceID, key, value string) error
	RemoveLabel(ctx context.Context, projectID, deviceID, key string) error
}

// OrganizationsClient defines operations for organizations.
type OrganizationsClient interface {
	Get(ctx context.Context, organizationID string) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
}

// RolesClient defines operations for access roles.
type RolesClient interface {
	Get(ctx context.Context, role string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
}

// EventsClient defines operations for event history and live streams.
type EventsClient interface {
	History(ctx context.Context, projectID, deviceID string, opts *EventHistoryOptions) ([]Event, error)
	Stream(ctx context.Context, projectID string, opts *StreamOptions) EventStream
	StreamDevice(ctx context.Context, projectID, deviceID string, opts *StreamOptions) EventStream
}

// Pager yields a listing one page at a time. It is finite and not
// restartable; ask the resource client for a new one to start over.
type Pager[T any] interface {
	HasNext() bool
	Next(ctx context.Context) ([]T, error)
}

// EventStream yields live events until Close is called, the subscribing
// context ends, or reconnection gives up. Next returns io.EOF once the
// stream has ended.
type EventStream interface {
	Next(ctx context.Context) (*Event, error)
	Close()
}
