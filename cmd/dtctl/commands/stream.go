package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/internal/forward"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// NewStreamCommand creates the stream command.
func NewStreamCommand() *cobra.Command {
	var (
		opts        dt.StreamOptions
		eventTypes  []string
		labels      []string
		natsURL     string
		natsSubject string
		count       int
	)

	cmd := &cobra.Command{
		Use:   "stream PROJECT",
		Short: "Stream live events from a project",
		Long: `Stream live events from a project until interrupted.

The stream reconnects with exponential backoff when the connection drops. With
--nats-url events are published to NATS as <subject>.<project>.<device>.<type>
instead of being printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return constants.ErrProjectRequired
			}

			types, err := parseEventTypes(eventTypes)
			if err != nil {
				return err
			}

			filters, err := parseLabels(labels)
			if err != nil {
				return err
			}

			opts.EventTypes = types
			opts.LabelFilters = filters

			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events := s.client.Events().Stream(ctx, args[0], &opts)
			defer events.Close()

			if natsURL != "" {
				return forwardEvents(ctx, cmd, s, events, natsURL, natsSubject)
			}

			return printEvents(ctx, cmd.OutOrStdout(), events, count)
		},
	}

	cmd.Flags().StringSliceVar(&opts.DeviceIDs, "device", nil, "only these device ids")
	cmd.Flags().StringSliceVar(&opts.DeviceTypes, "device-type", nil, "only these device types")
	cmd.Flags().StringSliceVar(&eventTypes, "type", nil, "only these event types")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "label filter as key=value (repeatable)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "publish events to this NATS server")
	cmd.Flags().StringVar(&natsSubject, "nats-subject", constants.DefaultNATSSubject, "NATS subject prefix")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many events (0 streams forever)")

	return cmd
}

func forwardEvents(ctx context.Context, cmd *cobra.Command, s *session, events dt.EventStream, natsURL, subject string) error {
	forwarder, err := forward.Connect(natsURL, subject, s.logger)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := forwarder.Close()
		if closeErr != nil {
			s.logger.Warn("Failed to close NATS connection", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	published, err := forwarder.Run(ctx, events)

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Forwarded %d events\n", published)

	return err
}

// printEvents writes events until the stream ends or limit events were
// printed. JSON output is one wire object per line.
func printEvents(ctx context.Context, w io.Writer, events dt.EventStream, limit int) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	for printed := 0; limit <= 0 || printed < limit; printed++ {
		event, err := events.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading event stream: %w", err)
		}

		err = printEvent(w, format, event)
		if err != nil {
			return err
		}
	}

	return nil
}

func printEvent(w io.Writer, format string, event *dt.Event) error {
	var err error

	switch format {
	case constants.FormatJSON:
		_, err = fmt.Fprintln(w, string(event.Raw))
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(w)
		err = encoder.Encode(event)

		if err == nil {
			err = encoder.Close()
		}
	default:
		_, err = fmt.Fprintf(w, "%s  %-18s  %-20s  %s\n",
			dt.FormatTimestamp(event.Timestamp), event.EventType, orNone(event.DeviceID), summarizeEvent(event))
	}

	if err != nil {
		return fmt.Errorf("writing event: %w", err)
	}

	return nil
}
