package dt

import (
	"encoding/json"
	"strings"
)

// Project is a container for devices within an organization.
type Project struct {
	Name                    string `json:"name"                    yaml:"name"`
	DisplayName             string `json:"displayName"             yaml:"display_name"`
	Organization            string `json:"organization"            yaml:"organization"`
	OrganizationDisplayName string `json:"organizationDisplayName" yaml:"organization_display_name"`
	SensorCount             int    `json:"sensorCount"             yaml:"sensor_count"`
	CloudConnectorCount     int    `json:"cloudConnectorCount"     yaml:"cloud_connector_count"`
	Inventory               bool   `json:"inventory"               yaml:"inventory"`
}

// ID returns the project id from its resource name.
func (p *Project) ID() string { return lastSegment(p.Name) }

// OrganizationID returns the id of the owning organization.
func (p *Project) OrganizationID() string { return lastSegment(p.Organization) }

// ProjectCreateRequest is the body of a project create call.
type ProjectCreateRequest struct {
	Organization string `json:"organization"`
	DisplayName  string `json:"displayName"`
}

// ProjectUpdateRequest is the body of a project update call.
type ProjectUpdateRequest struct {
	DisplayName string `json:"displayName"`
}

// ProjectListOptions filters a project listing.
type ProjectListOptions struct {
	OrganizationID string
	Query          string
	PageSize       int
}

// Device is a sensor or Cloud Connector.
type Device struct {
	Name          string            `json:"name"          yaml:"name"`
	Type          string            `json:"type"          yaml:"type"`
	ProductNumber string            `json:"productNumber" yaml:"product_number"`
	Labels        map[string]string `json:"labels"        yaml:"labels"`
	Reported      *DeviceReported   `json:"reported"      yaml:"reported,omitempty"`
}

// ID returns the device id from its resource name.
func (d *Device) ID() string { return lastSegment(d.Name) }

// ProjectID returns the id of the project the device belongs to.
func (d *Device) ProjectID() string {
	projectID, _ := splitTargetName(d.Name)

	return projectID
}

// DeviceReported holds the last reported value of every event type the
// device has emitted. Each member is keyed by its event type name.
type DeviceReported struct {
	Raw  json.RawMessage         `json:"-" yaml:"-"`
	Data map[EventType]EventData `json:"-" yaml:"data"`
}

// UnmarshalJSON decodes each reported member through the event table.
func (r *DeviceReported) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage

	err := json.Unmarshal(data, &members)
	if err != nil {
		return err
	}

	r.Raw = append(json.RawMessage(nil), data...)
	r.Data = make(map[EventType]EventData, len(members))

	for name, payload := range members {
		eventType := EventType(name)

		spec, ok := eventSpecs[eventType]
		if !ok {
			r.Data[eventType] = &UnknownData{Type: eventType, Raw: payload}

			continue
		}

		value := spec.new()

		err = json.Unmarshal(payload, value)
		if err != nil {
			return err
		}

		r.Data[eventType] = value
	}

	return nil
}

// DeviceListOptions filters a device listing.
type DeviceListOptions struct {
	Query        string
	DeviceIDs    []string
	DeviceTypes  []string
	LabelFilters map[string]string
	OrderBy      string
	PageSize     int
}

// Organization owns projects and members.
type Organization struct {
	Name        string `json:"name"        yaml:"name"`
	DisplayName string `json:"displayName" yaml:"display_name"`
}

// ID returns the organization id from its resource name.
func (o *Organization) ID() string { return lastSegment(o.Name) }

// Role is an access role that may be granted to a member.
type Role struct {
	Name        string   `json:"name"        yaml:"name"`
	DisplayName string   `json:"displayName" yaml:"display_name"`
	Description string   `json:"description" yaml:"description"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// RoleName returns the short role name, e.g. "project.user".
func (r *Role) RoleName() string { return lastSegment(r.Name) }

// EventHistoryOptions filters an event history listing.
type EventHistoryOptions struct {
	EventTypes []EventType
	// StartTime and EndTime accept a string, time.Time or *time.Time.
	StartTime interface{}
	EndTime   interface{}
	PageSize  int
}

// StreamOptions filters an event stream.
type StreamOptions struct {
	DeviceIDs    []string
	DeviceTypes  []string
	EventTypes   []EventType
	LabelFilters map[string]string
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}

	return name
}
