// Package forward republishes streamed events onto a NATS subject tree.
package forward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/dtclient/internal/constants"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

// Static errors for err113 compliance.
var (
	ErrNATSURLRequired = errors.New("NATS URL is required")
	ErrEmptyEvent      = errors.New("event has no payload")
)

// Message headers set on every forwarded event.
const (
	HeaderEventID   = "Dt-Event-Id"
	HeaderEventType = "Dt-Event-Type"
	HeaderTarget    = "Dt-Target-Name"
)

// Publisher is the subset of *nats.Conn the forwarder needs.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Forwarder publishes each event to <prefix>.<project>.<device>.<eventType>.
type Forwarder struct {
	publisher Publisher
	prefix    string
	logger    dt.Logger
	conn      *nats.Conn
}

// New creates a forwarder over an existing publisher. An empty prefix uses
// the default subject.
func New(publisher Publisher, prefix string, logger dt.Logger) *Forwarder {
	if prefix == "" {
		prefix = constants.DefaultNATSSubject
	}

	if logger == nil {
		logger = dt.NopLogger{}
	}

	return &Forwarder{
		publisher: publisher,
		prefix:    strings.TrimSuffix(prefix, "."),
		logger:    logger,
	}
}

// Connect dials the NATS server at natsURL and returns a forwarder that owns
// the connection.
func Connect(natsURL, prefix string, logger dt.Logger) (*Forwarder, error) {
	if natsURL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(natsURL,
		nats.Name(constants.DefaultUserAgent),
		nats.Timeout(constants.NATSConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	forwarder := New(conn, prefix, logger)
	forwarder.conn = conn

	forwarder.logger.Info("Connected to NATS", map[string]interface{}{
		"url":     conn.ConnectedUrlRedacted(),
		"subject": forwarder.prefix,
	})

	return forwarder, nil
}

// Subject returns the subject an event is published on. Missing tokens are
// replaced with "_" so the subject stays four levels deep.
func (f *Forwarder) Subject(event *dt.Event) string {
	return strings.Join([]string{
		f.prefix,
		subjectToken(event.ProjectID),
		subjectToken(event.DeviceID),
		subjectToken(string(event.EventType)),
	}, ".")
}

// Publish sends the event's wire JSON.
func (f *Forwarder) Publish(event *dt.Event) error {
	if event == nil || len(event.Raw) == 0 {
		return ErrEmptyEvent
	}

	msg := nats.NewMsg(f.Subject(event))
	msg.Data = event.Raw
	msg.Header.Set(HeaderEventID, event.EventID)
	msg.Header.Set(HeaderEventType, string(event.EventType))
	msg.Header.Set(HeaderTarget, event.TargetName)

	err := f.publisher.PublishMsg(msg)
	if err != nil {
		return fmt.Errorf("publishing event %s: %w", event.EventID, err)
	}

	return nil
}

// Run publishes every event from events until it ends, and returns how many
// were published. A failed publish stops the run.
func (f *Forwarder) Run(ctx context.Context, events dt.EventStream) (int, error) {
	published := 0

	for {
		event, err := events.Next(ctx)
		if errors.Is(err, io.EOF) {
			return published, nil
		}

		if err != nil {
			return published, fmt.Errorf("reading event stream: %w", err)
		}

		err = f.Publish(event)
		if err != nil {
			return published, err
		}

		published++

		f.logger.Debug("Forwarded event", map[string]interface{}{
			"event_id": event.EventID,
			"subject":  f.Subject(event),
		})
	}
}

// Close flushes and closes the connection opened by Connect.
func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}

	defer f.conn.Close()

	err := f.conn.FlushTimeout(constants.NATSFlushTimeout)
	if err != nil {
		return fmt.Errorf("flushing NATS connection: %w", err)
	}

	return nil
}

func subjectToken(value string) string {
	if value == "" {
		return "_"
	}

	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(value)
}
