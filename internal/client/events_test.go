package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalhttp "github.com/fivetwenty-io/dtclient/internal/http"
	"github.com/fivetwenty-io/dtclient/internal/stream"
	"github.com/fivetwenty-io/dtclient/pkg/dt"
)

const touchEvent = `{"eventId":"e1","targetName":"projects/p1/devices/d1","eventType":"touch",` +
	`"data":{"touch":{"updateTime":"2024-03-01T10:00:00Z"}},"timestamp":"2024-03-01T10:00:00Z"}`

type staticCredential struct {
	token string
}

func (c *staticCredential) GetToken(context.Context) (string, error) { return c.token, nil }
func (c *staticCredential) RefreshToken(context.Context) error       { return nil }
func (c *staticCredential) SetToken(token string, _ time.Time)        { c.token = token }

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestEventsClient_History(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(pagedHandler(t, "events", [][]interface{}{
		{map[string]interface{}{
			"eventId":    "e1",
			"targetName": "projects/p1/devices/d1",
			"eventType":  "temperature",
			"data":       map[string]interface{}{"temperature": map[string]interface{}{"value": 21.5}},
			"timestamp":  "2024-03-01T10:00:00Z",
		}},
		{map[string]interface{}{
			"eventId":    "e2",
			"targetName": "projects/p1/devices/d1",
			"eventType":  "touch",
			"data":       map[string]interface{}{"touch": map[string]interface{}{}},
			"timestamp":  "2024-03-01T11:00:00+01:00",
		}},
	}, func(r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "/projects/p1/devices/d1/events", r.URL.Path)
		assert.Equal(t, []string{"temperature", "touch"}, query["eventTypes"])
		assert.Equal(t, "2024-03-01T00:00:00Z", query.Get("startTime"))
		assert.Equal(t, "2024-03-02T00:00:00+01:00", query.Get("endTime"))
	}))
	defer server.Close()

	events, err := NewTestClient(server.URL).Events().History(context.Background(), "p1", "d1", &dt.EventHistoryOptions{
		EventTypes: []dt.EventType{dt.EventTemperature, dt.EventTouch},
		StartTime:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndTime:    "2024-03-02T00:00:00+01:00",
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	temperature, ok := events[0].Data.(*dt.Temperature)
	require.True(t, ok)
	assert.InDelta(t, 21.5, temperature.Celsius, 0.001)
	assert.Equal(t, dt.EventTouch, events[1].EventType)
	assert.True(t, events[1].Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestEventsClient_HistoryRejectsInvalidTimes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	events := NewTestClient(server.URL).Events()

	_, err := events.History(context.Background(), "p1", "d1", &dt.EventHistoryOptions{StartTime: 1700000000})
	require.ErrorIs(t, err, dt.ErrTypeError)

	_, err = events.History(context.Background(), "p1", "d1", &dt.EventHistoryOptions{EndTime: "2024-03-01T00:00:00"})
	require.ErrorIs(t, err, dt.ErrFormatError)
}

func TestEventsClient_Stream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "/projects/p1/devices:stream", r.URL.Path)
		assert.Equal(t, []string{"d1"}, query["device_ids"])
		assert.Equal(t, []string{"touch"}, query["event_types"])
		assert.Equal(t, []string{"room=a"}, query["label_filters"])
		assert.Equal(t, "10s", query.Get("ping_interval"))
		assert.Equal(t, "Bearer default", r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `{"result":{"event":{"eventType":"ping"}}}`+"\n")
		_, _ = io.WriteString(w, `{"result":{"event":`+touchEvent+`}}`+"\n")
	}))
	defer server.Close()

	core := internalhttp.NewClient(server.URL, &staticCredential{token: "Bearer default"})
	events := NewEventsClient(core, &dt.Config{MaxRetries: 1}, stream.WithSleep(noSleep))

	sub := events.StreamDevice(context.Background(), "p1", "d1", &dt.StreamOptions{
		DeviceIDs:    []string{"ignored"},
		EventTypes:   []dt.EventType{dt.EventTouch},
		LabelFilters: map[string]string{"room": "a"},
	})
	defer sub.Close()

	event, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e1", event.EventID)
	assert.IsType(t, &dt.Touch{}, event.Data)
}

func TestEventsClient_StreamCallOptions(t *testing.T) {
	t.Parallel()

	headers := make(chan string, 2)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("Authorization")

		_, _ = io.WriteString(w, `{"result":{"event":`+touchEvent+`}}`+"\n")
	}))
	defer server.Close()

	core := internalhttp.NewClient(server.URL, &staticCredential{token: "Bearer default"})
	events := NewEventsClient(core, nil, stream.WithSleep(noSleep))

	ctx := dt.WithCallOptions(context.Background(), &dt.CallOptions{
		Credential: &staticCredential{token: "Bearer override"},
	})

	sub := events.Stream(ctx, "p1", nil)
	_, err := sub.Next(context.Background())
	require.NoError(t, err)
	sub.Close()
	assert.Equal(t, "Bearer override", <-headers)

	ctx = dt.WithCallOptions(context.Background(), &dt.CallOptions{SkipAuth: true})

	sub = events.Stream(ctx, "p1", nil)
	_, err = sub.Next(context.Background())
	require.NoError(t, err)
	sub.Close()
	assert.Empty(t, <-headers)
}

func TestEventsClient_StreamRetryCeilingFromCallOptions(t *testing.T) {
	t.Parallel()

	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connections.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	core := internalhttp.NewClient(server.URL, nil)
	events := NewEventsClient(core, &dt.Config{MaxRetries: 5}, stream.WithSleep(noSleep))

	ctx := dt.WithCallOptions(context.Background(), &dt.CallOptions{MaxRetries: 2})

	sub := events.Stream(ctx, "p1", nil)
	defer sub.Close()

	_, err := sub.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int32(3), connections.Load())
}
