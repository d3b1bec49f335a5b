package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// NewEventsCommand creates the events command group.
func NewEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"event"},
		Short:   "Query device event history",
	}

	cmd.AddCommand(newEventsHistoryCommand())

	return cmd
}

func newEventsHistoryCommand() *cobra.Command {
	var (
		eventTypes []string
		start      string
		end        string
		pageSize   int
	)

	cmd := &cobra.Command{
		Use:   "history PROJECT DEVICE",
		Short: "List historical events of a device",
		Long: `List historical events of a device.

--start and --end take RFC 3339 timestamps with a zone designator, for
example 2024-05-01T00:00:00Z.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // project and device
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseEventTypes(eventTypes)
			if err != nil {
				return err
			}

			opts := &dt.EventHistoryOptions{EventTypes: types, PageSize: pageSize}
			if start != "" {
				opts.StartTime = start
			}

			if end != "" {
				opts.EndTime = end
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			events, err := s.client.Events().History(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}

			return outputEvents(cmd, events)
		},
	}

	cmd.Flags().StringSliceVar(&eventTypes, "type", nil, "only these event types (repeatable)")
	cmd.Flags().StringVar(&start, "start", "", "earliest event timestamp")
	cmd.Flags().StringVar(&end, "end", "", "latest event timestamp")
	cmd.Flags().IntVar(&pageSize, "page-size", constants.DefaultPageSize, "results per request")

	return cmd
}

// parseEventTypes validates event type names against the known set.
func parseEventTypes(names []string) ([]dt.EventType, error) {
	types := make([]dt.EventType, 0, len(names))

	for _, name := range names {
		eventType := dt.EventType(strings.TrimSpace(name))
		if !eventType.Known() || eventType == dt.EventPing {
			return nil, fmt.Errorf("%w: %q", constants.ErrUnknownEventType, name)
		}

		types = append(types, eventType)
	}

	return types, nil
}

func outputEvents(cmd *cobra.Command, events []dt.Event) error {
	w := cmd.OutOrStdout()

	return render(w, events, func() error {
		if len(events) == 0 {
			return renderEmpty(w, "events")
		}

		rows := make([][]string, 0, len(events))
		for i := range events {
			event := &events[i]
			rows = append(rows, []string{
				dt.FormatTimestamp(event.Timestamp),
				string(event.EventType),
				orNone(event.DeviceID),
				summarizeEvent(event),
			})
		}

		return renderTable(w, []string{"Timestamp", "Type", "Device", "Value"}, rows)
	})
}

// summarizeEvent renders the headline value of an event's data.
func summarizeEvent(event *dt.Event) string {
	switch data := event.Data.(type) {
	case *dt.Touch:
		return "touched"
	case *dt.Temperature:
		return strconv.FormatFloat(data.Celsius, 'f', 2, 64) + " C"
	case *dt.Humidity:
		return fmt.Sprintf("%.2f C, %.1f%% RH", data.Celsius, data.RelativeHumidity)
	case *dt.ObjectPresent:
		return data.State
	case *dt.WaterPresent:
		return data.State
	case *dt.Motion:
		return data.State
	case *dt.DeskOccupancy:
		return data.State
	case *dt.ObjectPresentCount:
		return strconv.FormatInt(data.Total, 10)
	case *dt.TouchCount:
		return strconv.FormatInt(data.Total, 10)
	case *dt.BatteryStatus:
		return strconv.Itoa(data.Percentage) + "%"
	case *dt.NetworkStatus:
		return fmt.Sprintf("signal %d%% via %s", data.SignalStrength, orNone(data.TransmissionMode))
	case *dt.CO2:
		return strconv.Itoa(data.PPM) + " ppm"
	case *dt.Pressure:
		return strconv.FormatFloat(data.Pascal, 'f', 0, 64) + " Pa"
	case *dt.ConnectionStatus:
		return data.Connection
	case *dt.CellularStatus:
		return fmt.Sprintf("signal %d%%", data.SignalStrength)
	case *dt.EthernetStatus:
		return orNone(data.IPAddress)
	case *dt.LabelsChanged:
		return fmt.Sprintf("+%d ~%d -%d", len(data.Added), len(data.Modified), len(data.Removed))
	default:
		return constants.NotAvailable
	}
}
