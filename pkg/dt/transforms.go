package dt

import (
	"encoding/base64"
	"time"
)

// TimestampLayout is the wire form of every timestamp exchanged with the API.
const TimestampLayout = time.RFC3339Nano

// ParseTimestamp decodes an RFC 3339 timestamp. The zone designator is
// mandatory; anything else yields a FormatError.
func ParseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return time.Time{}, &Error{
			Kind:    KindFormatError,
			Message: "timestamp " + value + " is not RFC 3339 with a zone designator",
			Err:     err,
		}
	}

	return parsed, nil
}

// FormatTimestamp encodes t in its wire form, keeping t's own offset.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ValidateISO8601 reports whether value parses as a zoned RFC 3339 timestamp.
func ValidateISO8601(value string) bool {
	_, err := ParseTimestamp(value)

	return err == nil
}

// ToISO8601 normalizes a caller-supplied time argument to its wire form.
// It accepts nil, string, time.Time and *time.Time.
func ToISO8601(value interface{}) (string, error) {
	switch typed := value.(type) {
	case nil:
		return "", nil
	case string:
		if !ValidateISO8601(typed) {
			return "", NewFormatError("timestamp %q is not RFC 3339 with a zone designator", typed)
		}

		return typed, nil
	case time.Time:
		return FormatTimestamp(typed), nil
	case *time.Time:
		if typed == nil {
			return "", nil
		}

		return FormatTimestamp(*typed), nil
	default:
		return "", NewTypeError("timestamp must be a string or time.Time, got %T", value)
	}
}

// ToTime is the inverse of ToISO8601. A nil value yields the zero time.
func ToTime(value interface{}) (time.Time, error) {
	switch typed := value.(type) {
	case nil:
		return time.Time{}, nil
	case string:
		return ParseTimestamp(typed)
	case time.Time:
		return typed, nil
	case *time.Time:
		if typed == nil {
			return time.Time{}, nil
		}

		return *typed, nil
	default:
		return time.Time{}, NewTypeError("timestamp must be a string or time.Time, got %T", value)
	}
}

// Base64Encode returns the standard base64 encoding of value.
func Base64Encode(value string) string {
	return base64.StdEncoding.EncodeToString([]byte(value))
}
