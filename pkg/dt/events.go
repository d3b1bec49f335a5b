package dt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType is the closed set of event kinds the API emits.
type EventType string

// Event types as they appear on the wire.
const (
	EventTouch              EventType = "touch"
	EventTemperature        EventType = "temperature"
	EventObjectPresent      EventType = "objectPresent"
	EventHumidity           EventType = "humidity"
	EventObjectPresentCount EventType = "objectPresentCount"
	EventTouchCount         EventType = "touchCount"
	EventWaterPresent       EventType = "waterPresent"
	EventNetworkStatus      EventType = "networkStatus"
	EventBatteryStatus      EventType = "batteryStatus"
	EventLabelsChanged      EventType = "labelsChanged"
	EventConnectionStatus   EventType = "connectionStatus"
	EventEthernetStatus     EventType = "ethernetStatus"
	EventCellularStatus     EventType = "cellularStatus"
	EventCO2                EventType = "co2"
	EventPressure           EventType = "pressure"
	EventMotion             EventType = "motion"
	EventDeskOccupancy      EventType = "deskOccupancy"
	EventPing               EventType = "ping"
)

// eventSpec describes how one event type's data is laid out. Keyed payloads
// nest their fields under an object named after the event type.
type eventSpec struct {
	keyed bool
	new   func() EventData
}

var eventSpecs = map[EventType]eventSpec{
	EventTouch:              {keyed: true, new: func() EventData { return &Touch{} }},
	EventTemperature:        {keyed: true, new: func() EventData { return &Temperature{} }},
	EventObjectPresent:      {keyed: true, new: func() EventData { return &ObjectPresent{} }},
	EventHumidity:           {keyed: true, new: func() EventData { return &Humidity{} }},
	EventObjectPresentCount: {keyed: true, new: func() EventData { return &ObjectPresentCount{} }},
	EventTouchCount:         {keyed: true, new: func() EventData { return &TouchCount{} }},
	EventWaterPresent:       {keyed: true, new: func() EventData { return &WaterPresent{} }},
	EventNetworkStatus:      {keyed: true, new: func() EventData { return &NetworkStatus{} }},
	EventBatteryStatus:      {keyed: true, new: func() EventData { return &BatteryStatus{} }},
	EventLabelsChanged:      {keyed: false, new: func() EventData { return &LabelsChanged{} }},
	EventConnectionStatus:   {keyed: true, new: func() EventData { return &ConnectionStatus{} }},
	EventEthernetStatus:     {keyed: true, new: func() EventData { return &EthernetStatus{} }},
	EventCellularStatus:     {keyed: true, new: func() EventData { return &CellularStatus{} }},
	EventCO2:                {keyed: true, new: func() EventData { return &CO2{} }},
	EventPressure:           {keyed: true, new: func() EventData { return &Pressure{} }},
	EventMotion:             {keyed: true, new: func() EventData { return &Motion{} }},
	EventDeskOccupancy:      {keyed: true, new: func() EventData { return &DeskOccupancy{} }},
}

// EventTypes returns every known event type except ping.
func EventTypes() []EventType {
	types := make([]EventType, 0, len(eventSpecs))
	for _, t := range []EventType{
		EventTouch, EventTemperature, EventObjectPresent, EventHumidity,
		EventObjectPresentCount, EventTouchCount, EventWaterPresent,
		EventNetworkStatus, EventBatteryStatus, EventLabelsChanged,
		EventConnectionStatus, EventEthernetStatus, EventCellularStatus,
		EventCO2, EventPressure, EventMotion, EventDeskOccupancy,
	} {
		types = append(types, t)
	}

	return types
}

// Known reports whether t is part of the closed set.
func (t EventType) Known() bool {
	_, ok := eventSpecs[t]

	return ok || t == EventPing
}

// EventData is implemented by the payload of every event type.
type EventData interface {
	EventType() EventType
}

// Event is a single event delivered by the history or stream endpoints.
type Event struct {
	EventID    string          `json:"eventId"    yaml:"event_id"`
	EventType  EventType       `json:"eventType"  yaml:"event_type"`
	TargetName string          `json:"targetName" yaml:"target_name"`
	ProjectID  string          `json:"-"          yaml:"project_id"`
	DeviceID   string          `json:"-"          yaml:"device_id"`
	Timestamp  time.Time       `json:"timestamp"  yaml:"timestamp"`
	Data       EventData       `json:"data"       yaml:"data"`
	Raw        json.RawMessage `json:"-"          yaml:"-"`
}

type wireEvent struct {
	EventID    string          `json:"eventId"`
	EventType  EventType       `json:"eventType"`
	TargetName string          `json:"targetName"`
	Timestamp  string          `json:"timestamp"`
	Data       json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the wire envelope and dispatches the data payload to
// the struct registered for its event type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire wireEvent

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}

	e.EventID = wire.EventID
	e.EventType = wire.EventType
	e.TargetName = wire.TargetName
	e.ProjectID, e.DeviceID = splitTargetName(wire.TargetName)
	e.Raw = append(json.RawMessage(nil), data...)

	e.Timestamp = time.Time{}
	if wire.Timestamp != "" {
		e.Timestamp, err = ParseTimestamp(wire.Timestamp)
		if err != nil {
			return err
		}
	}

	e.Data, err = DecodeEventData(wire.EventType, wire.Data)

	return err
}

// DecodeEventData decodes the data member of an event of the given type.
func DecodeEventData(eventType EventType, data json.RawMessage) (EventData, error) {
	spec, ok := eventSpecs[eventType]
	if !ok {
		return &UnknownData{Type: eventType, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	payload := data
	if spec.keyed && len(data) > 0 {
		var outer map[string]json.RawMessage

		err := json.Unmarshal(data, &outer)
		if err != nil {
			return nil, fmt.Errorf("decoding %s data: %w", eventType, err)
		}

		payload = outer[string(eventType)]
	}

	value := spec.new()
	if len(payload) == 0 || string(payload) == "null" {
		return value, nil
	}

	err := json.Unmarshal(payload, value)
	if err != nil {
		return nil, fmt.Errorf("decoding %s data: %w", eventType, err)
	}

	return value, nil
}

// splitTargetName extracts ids from "projects/<project>/devices/<device>".
func splitTargetName(targetName string) (projectID, deviceID string) {
	parts := strings.Split(targetName, "/")
	if len(parts) >= 2 && parts[0] == "projects" {
		projectID = parts[1]
	}

	if len(parts) >= 4 && parts[2] == "devices" {
		deviceID = parts[3]
	}

	return projectID, deviceID
}

// Touch is emitted when a sensor is touched.
type Touch struct {
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// TemperatureSample is a single reading within a temperature event.
type TemperatureSample struct {
	Celsius    float64   `json:"value"      yaml:"celsius"`
	SampleTime time.Time `json:"sampleTime" yaml:"sample_time"`
}

// Temperature carries the latest reading and any buffered samples.
type Temperature struct {
	Celsius    float64             `json:"value"             yaml:"celsius"`
	Samples    []TemperatureSample `json:"samples,omitempty" yaml:"samples,omitempty"`
	UpdateTime time.Time           `json:"updateTime"        yaml:"update_time"`
}

// ObjectPresent reports proximity state: PRESENT or NOT_PRESENT.
type ObjectPresent struct {
	State      string    `json:"state"      yaml:"state"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// Humidity carries temperature and relative humidity.
type Humidity struct {
	Celsius          float64   `json:"temperature"      yaml:"celsius"`
	RelativeHumidity float64   `json:"relativeHumidity" yaml:"relative_humidity"`
	UpdateTime       time.Time `json:"updateTime"       yaml:"update_time"`
}

// ObjectPresentCount is the lifetime count of proximity changes.
type ObjectPresentCount struct {
	Total      int64     `json:"total"      yaml:"total"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// TouchCount is the lifetime count of touches.
type TouchCount struct {
	Total      int64     `json:"total"      yaml:"total"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// WaterPresent reports PRESENT or NOT_PRESENT.
type WaterPresent struct {
	State      string    `json:"state"      yaml:"state"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// NetworkStatusCloudConnector is one Cloud Connector that heard the sensor.
type NetworkStatusCloudConnector struct {
	DeviceID       string `json:"id"             yaml:"device_id"`
	SignalStrength int    `json:"signalStrength" yaml:"signal_strength"`
	RSSI           int    `json:"rssi"           yaml:"rssi"`
}

// NetworkStatus describes the radio link of a sensor.
type NetworkStatus struct {
	SignalStrength   int                           `json:"signalStrength"   yaml:"signal_strength"`
	RSSI             int                           `json:"rssi"             yaml:"rssi"`
	TransmissionMode string                        `json:"transmissionMode" yaml:"transmission_mode"`
	CloudConnectors  []NetworkStatusCloudConnector `json:"cloudConnectors"  yaml:"cloud_connectors"`
	UpdateTime       time.Time                     `json:"updateTime"       yaml:"update_time"`
}

// BatteryStatus carries the remaining battery percentage.
type BatteryStatus struct {
	Percentage int       `json:"percentage" yaml:"percentage"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// LabelsChanged lists label edits on a device. Its data is not nested.
type LabelsChanged struct {
	Added    map[string]string `json:"added"    yaml:"added"`
	Modified map[string]string `json:"modified" yaml:"modified"`
	Removed  []string          `json:"removed"  yaml:"removed"`
}

// ConnectionStatus reports the active and available Cloud Connector uplinks.
type ConnectionStatus struct {
	Connection string    `json:"connection" yaml:"connection"`
	Available  []string  `json:"available"  yaml:"available"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// StatusErrorMessage is an uplink error reported by a Cloud Connector.
type StatusErrorMessage struct {
	Code    string `json:"code"    yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// EthernetStatus describes a Cloud Connector's ethernet uplink.
type EthernetStatus struct {
	MACAddress string               `json:"macAddress"       yaml:"mac_address"`
	IPAddress  string               `json:"ipAddress"        yaml:"ip_address"`
	Errors     []StatusErrorMessage `json:"errors,omitempty" yaml:"errors,omitempty"`
	UpdateTime time.Time            `json:"updateTime"       yaml:"update_time"`
}

// CellularStatus describes a Cloud Connector's cellular uplink.
type CellularStatus struct {
	SignalStrength int                  `json:"signalStrength"   yaml:"signal_strength"`
	Errors         []StatusErrorMessage `json:"errors,omitempty" yaml:"errors,omitempty"`
	UpdateTime     time.Time            `json:"updateTime"       yaml:"update_time"`
}

// CO2 carries a carbon dioxide reading.
type CO2 struct {
	PPM        int       `json:"ppm"        yaml:"ppm"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// Pressure carries a barometric pressure reading.
type Pressure struct {
	Pascal     float64   `json:"pascal"     yaml:"pascal"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// Motion reports MOTION_DETECTED or NO_MOTION_DETECTED.
type Motion struct {
	State      string    `json:"state"      yaml:"state"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// DeskOccupancy reports OCCUPIED or NOT_OCCUPIED with optional remarks.
type DeskOccupancy struct {
	State      string    `json:"state"             yaml:"state"`
	Remarks    []string  `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	UpdateTime time.Time `json:"updateTime"        yaml:"update_time"`
}

// UnknownData holds the payload of an event type this package does not know.
type UnknownData struct {
	Type EventType       `json:"-" yaml:"type"`
	Raw  json.RawMessage `json:"-" yaml:"-"`
}

func (*Touch) EventType() EventType              { return EventTouch }
func (*Temperature) EventType() EventType        { return EventTemperature }
func (*ObjectPresent) EventType() EventType      { return EventObjectPresent }
func (*Humidity) EventType() EventType           { return EventHumidity }
func (*ObjectPresentCount) EventType() EventType { return EventObjectPresentCount }
func (*TouchCount) EventType() EventType         { return EventTouchCount }
func (*WaterPresent) EventType() EventType       { return EventWaterPresent }
func (*NetworkStatus) EventType() EventType      { return EventNetworkStatus }
func (*BatteryStatus) EventType() EventType      { return EventBatteryStatus }
func (*LabelsChanged) EventType() EventType      { return EventLabelsChanged }
func (*ConnectionStatus) EventType() EventType   { return EventConnectionStatus }
func (*EthernetStatus) EventType() EventType     { return EventEthernetStatus }
func (*CellularStatus) EventType() EventType     { return EventCellularStatus }
func (*CO2) EventType() EventType                { return EventCO2 }
func (*Pressure) EventType() EventType           { return EventPressure }
func (*Motion) EventType() EventType             { return EventMotion }
func (*DeskOccupancy) EventType() EventType      { return EventDeskOccupancy }
func (u *UnknownData) EventType() EventType      { return u.Type }
