package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// NewDevicesCommand creates the devices command group.
func NewDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"device"},
		Short:   "Manage devices",
		Long:    "List and inspect sensors and Cloud Connectors, and edit their labels",
	}

	cmd.AddCommand(newDevicesListCommand())
	cmd.AddCommand(newDevicesGetCommand())
	cmd.AddCommand(newDevicesLabelCommand())
	cmd.AddCommand(newDevicesUnlabelCommand())

	return cmd
}

func newDevicesListCommand() *cobra.Command {
	var (
		opts   dt.DeviceListOptions
		labels []string
		lazy   bool
	)

	cmd := &cobra.Command{
		Use:   "list PROJECT",
		Short: "List devices in a project",
		Long: `List devices in a project.

By default every page is fetched before anything is printed. With --lazy each
page is printed as soon as it arrives.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseLabels(labels)
			if err != nil {
				return err
			}

			opts.LabelFilters = filters

			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			if lazy {
				return listDevicesLazily(cmd, s, args[0], &opts)
			}

			devices, err := s.client.Devices().List(cmd.Context(), args[0], &opts)
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}

			return outputDevices(cmd, devices)
		},
	}

	cmd.Flags().IntVar(&opts.PageSize, "page-size", constants.DefaultPageSize, "results per request")
	cmd.Flags().BoolVar(&lazy, "lazy", false, "print each page as it is fetched")
	cmd.Flags().StringVar(&opts.Query, "query", "", "free text search")
	cmd.Flags().StringSliceVar(&opts.DeviceIDs, "device", nil, "only these device ids")
	cmd.Flags().StringSliceVar(&opts.DeviceTypes, "device-type", nil, "only these device types")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "label filter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.OrderBy, "order-by", "", "sort field, e.g. reported.temperature.value")

	return cmd
}

func listDevicesLazily(cmd *cobra.Command, s *session, projectID string, opts *dt.DeviceListOptions) error {
	pager := s.client.Devices().ListPages(projectID, opts)

	for page := 1; pager.HasNext(); page++ {
		devices, err := pager.Next(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		s.logger.Debug("Fetched device page", map[string]interface{}{"page": page, "devices": len(devices)})

		err = outputDevices(cmd, devices)
		if err != nil {
			return err
		}
	}

	return nil
}

func newDevicesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get PROJECT DEVICE",
		Short: "Show a device and its last reported values",
		Args:  cobra.ExactArgs(2), //nolint:mnd // project and device
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			device, err := s.client.Devices().Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to get device: %w", err)
			}

			w := cmd.OutOrStdout()

			return render(w, device, func() error {
				return renderTable(w, []string{"Property", "Value"}, [][]string{
					{"ID", device.ID()},
					{"Project", device.ProjectID()},
					{"Type", device.Type},
					{"Product Number", orNone(device.ProductNumber)},
					{"Labels", formatLabels(device.Labels)},
					{"Reported", reportedTypes(device.Reported)},
				})
			})
		},
	}
}

func newDevicesLabelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "label PROJECT DEVICE KEY=VALUE...",
		Short: "Add or change device labels",
		Args:  cobra.MinimumNArgs(3), //nolint:mnd // project, device and at least one label
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, err := parseLabels(args[2:])
			if err != nil {
				return err
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			projectID, deviceID := args[0], args[1]

			if len(labels) == 1 {
				for key, value := range labels {
					err = s.client.Devices().SetLabel(cmd.Context(), projectID, deviceID, key, value)
				}
			} else {
				err = s.client.Devices().BatchUpdateLabels(cmd.Context(), projectID, []string{deviceID}, labels, nil)
			}

			if err != nil {
				return fmt.Errorf("failed to label device: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Labelled device %s: %s\n", deviceID, formatLabels(labels))

			return nil
		},
	}
}

func newDevicesUnlabelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unlabel PROJECT DEVICE KEY...",
		Short: "Remove device labels",
		Args:  cobra.MinimumNArgs(3), //nolint:mnd // project, device and at least one key
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			projectID, deviceID, keys := args[0], args[1], args[2:]

			if len(keys) == 1 {
				err = s.client.Devices().RemoveLabel(cmd.Context(), projectID, deviceID, keys[0])
			} else {
				err = s.client.Devices().BatchUpdateLabels(cmd.Context(), projectID, []string{deviceID}, nil, keys)
			}

			if err != nil {
				return fmt.Errorf("failed to remove device labels: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed labels from device %s: %s\n", deviceID, strings.Join(keys, ","))

			return nil
		},
	}
}

func outputDevices(cmd *cobra.Command, devices []dt.Device) error {
	w := cmd.OutOrStdout()

	return render(w, devices, func() error {
		if len(devices) == 0 {
			return renderEmpty(w, "devices")
		}

		rows := make([][]string, 0, len(devices))
		for i := range devices {
			device := &devices[i]
			rows = append(rows, []string{device.ID(), device.Type, orNone(device.ProductNumber), formatLabels(device.Labels)})
		}

		return renderTable(w, []string{"ID", "Type", "Product Number", "Labels"}, rows)
	})
}

func reportedTypes(reported *dt.DeviceReported) string {
	if reported == nil || len(reported.Data) == 0 {
		return constants.None
	}

	names := make([]string, 0, len(reported.Data))
	for eventType := range reported.Data {
		names = append(names, string(eventType))
	}

	sort.Strings(names)

	return strings.Join(names, ", ")
}
