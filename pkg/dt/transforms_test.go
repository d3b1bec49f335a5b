package dt_test

import (
	"testing"
	"time"

	"github.com/fivetwenty-io/dtclient/pkg/dt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wire string
	}{
		{"utc", "2021-05-16T08:13:15.361624Z"},
		{"utc whole seconds", "2021-05-16T08:13:15Z"},
		{"positive offset", "2021-05-16T08:13:15.5+02:00"},
		{"negative offset", "2021-05-16T08:13:15-07:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parsed, err := dt.ParseTimestamp(tt.wire)
			require.NoError(t, err)
			assert.Equal(t, tt.wire, dt.FormatTimestamp(parsed))

			again, err := dt.ParseTimestamp(dt.FormatTimestamp(parsed))
			require.NoError(t, err)
			assert.True(t, parsed.Equal(again))

			_, offset := parsed.Zone()
			_, againOffset := again.Zone()
			assert.Equal(t, offset, againOffset)
		})
	}
}

func TestParseTimestamp_RequiresZone(t *testing.T) {
	t.Parallel()

	for _, value := range []string{
		"2021-05-16T08:13:15",
		"2021-05-16T08:13:15.361624",
		"2021-05-16",
		"2021-05-16T08:13:15Zjunk",
		"",
	} {
		_, err := dt.ParseTimestamp(value)
		require.Error(t, err, value)
		assert.ErrorIs(t, err, dt.ErrFormatError, value)
		assert.False(t, dt.ValidateISO8601(value), value)
	}
}

func TestToISO8601(t *testing.T) {
	t.Parallel()

	utc := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	oslo := time.Date(2022, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))

	got, err := dt.ToISO8601(utc)
	require.NoError(t, err)
	assert.Equal(t, "2022-01-02T03:04:05Z", got)

	got, err = dt.ToISO8601(&oslo)
	require.NoError(t, err)
	assert.Equal(t, "2022-01-02T03:04:05+01:00", got)

	got, err = dt.ToISO8601("2022-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, "2022-01-02T03:04:05Z", got)

	got, err = dt.ToISO8601(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = dt.ToISO8601("2022-01-02T03:04:05")
	assert.ErrorIs(t, err, dt.ErrFormatError)

	_, err = dt.ToISO8601(1641092645)
	assert.ErrorIs(t, err, dt.ErrTypeError)
}

func TestToTime(t *testing.T) {
	t.Parallel()

	got, err := dt.ToTime("2022-01-02T03:04:05+01:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2022, 1, 2, 2, 4, 5, 0, time.UTC)))

	got, err = dt.ToTime(nil)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = dt.ToTime(3.14)
	assert.ErrorIs(t, err, dt.ErrTypeError)
}

func TestBase64Encode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a2V5OnNlY3JldA==", dt.Base64Encode("key:secret"))
}
