package constants

import "errors"

// Configuration errors.
var (
	ErrNoCredentials    = errors.New("no credentials configured, set DT_SERVICE_ACCOUNT_KEY_ID, DT_SERVICE_ACCOUNT_SECRET and DT_SERVICE_ACCOUNT_EMAIL")
	ErrInvalidOutput    = errors.New("invalid output format, use table, json or yaml")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrSecretNotFromTTY = errors.New("service account secret is not set and stdin is not a terminal")
)

// Argument errors.
var (
	ErrProjectRequired = errors.New("project id is required")
	ErrInvalidLabel    = errors.New("label must be in key=value form")
)

// Stream errors.
var (
	ErrUnknownEventType = errors.New("unknown event type")
)
