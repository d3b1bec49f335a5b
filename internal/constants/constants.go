package constants

import "time"

// Version is the library and CLI version.
const Version = "0.4.0"

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "dtclient-go/" + Version

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration and token cache files.
	ConfigFilePerm = 0600
)

// Streaming.
const (
	// StreamBackoffBase is the base of the reconnect delay, in seconds.
	StreamBackoffBase = 2

	// StreamMaxLineSize bounds a single event line.
	StreamMaxLineSize = 1024 * 1024

	// StreamBufferSize is the initial read buffer for event lines.
	StreamBufferSize = 64 * 1024
)

// Pagination and display limits.
const (
	// DefaultPageSize is the page size the CLI requests when none is given.
	DefaultPageSize = 100

	// StringTruncationLength is the default length for truncating table cells.
	StringTruncationLength = 60
)

// Rate limiting.
const (
	// DefaultRateLimitBurst is the burst allowed by the client-side throttle.
	DefaultRateLimitBurst = 5
)

// Log rotation for the CLI --log-file flag.
const (
	// LogFileMaxSizeMB is the size at which the log file is rotated.
	LogFileMaxSizeMB = 10

	// LogFileMaxBackups is the number of rotated files kept.
	LogFileMaxBackups = 3

	// LogFileMaxAgeDays is how long rotated files are kept.
	LogFileMaxAgeDays = 28
)

// NATS forwarding.
const (
	// DefaultNATSSubject is the subject prefix events are published under.
	DefaultNATSSubject = "dt.events"

	// NATSConnectTimeout bounds the initial NATS connection.
	NATSConnectTimeout = 5 * time.Second

	// NATSFlushTimeout bounds the final flush when a forwarder closes.
	NATSFlushTimeout = 2 * time.Second
)

// Format constants.
const (
	// FormatTable for table output format.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// None is used when no value is present.
	None = "none"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"
)
