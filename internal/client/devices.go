package client

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// DevicesClient implements dt.DevicesClient.
type DevicesClient struct {
	httpClient *http.Client
}

// NewDevicesClient creates a new devices client.
func NewDevicesClient(httpClient *http.Client) *DevicesClient {
	return &DevicesClient{
		httpClient: httpClient,
	}
}

// Get implements dt.DevicesClient.Get.
func (c *DevicesClient) Get(ctx context.Context, projectID, deviceID string) (*dt.Device, error) {
	resp, err := c.httpClient.Get(ctx, devicePath(projectID, deviceID), nil)
	if err != nil {
		return nil, fmt.Errorf("getting device: %w", err)
	}

	var device dt.Device

	err = resp.Decode(&device)
	if err != nil {
		return nil, fmt.Errorf("parsing device: %w", err)
	}

	return &device, nil
}

// List implements dt.DevicesClient.List.
func (c *DevicesClient) List(ctx context.Context, projectID string, opts *dt.DeviceListOptions) ([]dt.Device, error) {
	query, pageSize := deviceListQuery(opts)

	devices, err := http.ListAllAs[dt.Device](ctx, c.httpClient, devicesPath(projectID), "devices", query, pageSize)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	return devices, nil
}

// ListPages implements dt.DevicesClient.ListPages. Nothing is fetched until
// the first call to Next.
func (c *DevicesClient) ListPages(projectID string, opts *dt.DeviceListOptions) dt.Pager[dt.Device] {
	query, pageSize := deviceListQuery(opts)

	return http.NewTypedPager[dt.Device](c.httpClient, devicesPath(projectID), "devices", query, pageSize)
}

type batchUpdateRequest struct {
	Devices      []string          `json:"devices"`
	AddLabels    map[string]string `json:"addLabels"`
	RemoveLabels []string          `json:"removeLabels"`
}

// BatchUpdateLabels implements dt.DevicesClient.BatchUpdateLabels.
func (c *DevicesClient) BatchUpdateLabels(
	ctx context.Context,
	projectID string,
	deviceIDs []string,
	set map[string]string,
	remove []string,
) error {
	body := batchUpdateRequest{
		Devices:      make([]string, 0, len(deviceIDs)),
		AddLabels:    set,
		RemoveLabels: remove,
	}

	if body.AddLabels == nil {
		body.AddLabels = map[string]string{}
	}

	if body.RemoveLabels == nil {
		body.RemoveLabels = []string{}
	}

	for _, deviceID := range deviceIDs {
		body.Devices = append(body.Devices, "projects/"+projectID+"/devices/"+deviceID)
	}

	_, err := c.httpClient.Post(ctx, devicesPath(projectID)+":batchUpdate", body)
	if err != nil {
		return fmt.Errorf("updating device labels: %w", err)
	}

	return nil
}

// SetLabel implements dt.DevicesClient.SetLabel.
func (c *DevicesClient) SetLabel(ctx context.Context, projectID, deviceID, key, value string) error {
	return c.BatchUpdateLabels(ctx, projectID, []string{deviceID}, map[string]string{key: value}, nil)
}

// RemoveLabel implements dt.DevicesClient.RemoveLabel.
func (c *DevicesClient) RemoveLabel(ctx context.Context, projectID, deviceID, key string) error {
	return c.BatchUpdateLabels(ctx, projectID, []string{deviceID}, nil, []string{key})
}

func devicesPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/devices"
}

func devicePath(projectID, deviceID string) string {
	return devicesPath(projectID) + "/" + url.PathEscape(deviceID)
}

func deviceListQuery(opts *dt.DeviceListOptions) (url.Values, int) {
	query := url.Values{}
	if opts == nil {
		return query, 0
	}

	if opts.Query != "" {
		query.Set("query", opts.Query)
	}

	for _, deviceID := range opts.DeviceIDs {
		query.Add("device_ids", deviceID)
	}

	for _, deviceType := range opts.DeviceTypes {
		query.Add("device_types", deviceType)
	}

	addLabelFilters(query, opts.LabelFilters)

	if opts.OrderBy != "" {
		query.Set("order_by", opts.OrderBy)
	}

	return query, opts.PageSize
}

// addLabelFilters encodes filters as repeated key=value pairs in key order.
func addLabelFilters(query url.Values, filters map[string]string) {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		query.Add("label_filters", key+"="+filters[key])
	}
}
