package dt

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind identifies one member of the error taxonomy.
type ErrorKind int

// Error kinds. Every non-2xx status maps to exactly one of these.
const (
	KindUnknown ErrorKind = iota
	KindBadRequest
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
	KindInternalServerError
	KindFormatError
	KindTypeError
)

var kindNames = map[ErrorKind]string{
	KindUnknown:             "Unknown",
	KindBadRequest:          "BadRequest",
	KindUnauthenticated:     "Unauthenticated",
	KindForbidden:           "Forbidden",
	KindNotFound:            "NotFound",
	KindConflict:            "Conflict",
	KindTooManyRequests:     "TooManyRequests",
	KindInternalServerError: "InternalServerError",
	KindFormatError:         "FormatError",
	KindTypeError:           "TypeError",
}

// String returns the taxonomy name of the kind.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "Unknown"
}

// Kind sentinels, reachable through errors.Is on any *Error.
var (
	ErrUnknown             = errors.New("unknown error")
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrInternalServerError = errors.New("internal server error")
	ErrFormatError         = errors.New("format error")
	ErrTypeError           = errors.New("type error")
)

var kindSentinels = map[ErrorKind]error{
	KindUnknown:             ErrUnknown,
	KindBadRequest:          ErrBadRequest,
	KindUnauthenticated:     ErrUnauthenticated,
	KindForbidden:           ErrForbidden,
	KindNotFound:            ErrNotFound,
	KindConflict:            ErrConflict,
	KindTooManyRequests:     ErrTooManyRequests,
	KindInternalServerError: ErrInternalServerError,
	KindFormatError:         ErrFormatError,
	KindTypeError:           ErrTypeError,
}

// Static errors for err113 compliance.
var (
	ErrNoMoreItems        = errors.New("no more items")
	ErrConfigRequired     = errors.New("config is required")
	ErrBaseURLRequired    = errors.New("base URL is required")
	ErrCredentialRequired = errors.New("credential is required")
)

// Error is the typed error returned for a failed API call or a rejected
// input. Body holds the raw response body when the error came from the API.
type Error struct {
	Kind       ErrorKind       `json:"kind"`
	StatusCode int             `json:"status_code,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Message    string          `json:"message,omitempty"`
	Err        error           `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = apiErrorMessage(e.Body)
	}

	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s (status %d): %s: %v", e.Kind, e.StatusCode, msg, e.Err)
		}

		if msg != "" {
			return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, msg)
		}

		return fmt.Sprintf("%s (status %d)", e.Kind, e.StatusCode)
	}

	if e.Err != nil {
		if msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
		}

		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}

	if msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}

	return e.Kind.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// Retryable reports whether the kind is ever worth resending.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUnauthenticated, KindTooManyRequests, KindInternalServerError:
		return true
	default:
		return false
	}
}

// NewAPIError builds the error for a non-2xx response.
func NewAPIError(kind ErrorKind, statusCode int, body []byte) *Error {
	apiErr := &Error{Kind: kind, StatusCode: statusCode}
	if len(body) > 0 {
		apiErr.Body = append(json.RawMessage(nil), body...)
	}

	return apiErr
}

// NewFormatError reports a malformed value given to a transform helper.
func NewFormatError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindFormatError, Message: fmt.Sprintf(format, args...)}
}

// NewTypeError reports a value of the wrong type or a missing required field.
func NewTypeError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindTypeError, Message: fmt.Sprintf(format, args...)}
}

// Classification is the outcome of classifying one HTTP round trip.
type Classification struct {
	Kind       ErrorKind
	Failed     bool
	Retry      bool
	RetryAfter time.Duration
}

// Classify maps a status code to the taxonomy and a retry decision. Headers
// only contribute the optional wait hint for 429 responses.
func Classify(statusCode int, header http.Header) Classification {
	if statusCode >= 200 && statusCode < 300 {
		return Classification{}
	}

	switch statusCode {
	case http.StatusBadRequest:
		return Classification{Kind: KindBadRequest, Failed: true}
	case http.StatusUnauthorized:
		return Classification{Kind: KindUnauthenticated, Failed: true, Retry: true}
	case http.StatusForbidden:
		return Classification{Kind: KindForbidden, Failed: true}
	case http.StatusNotFound:
		return Classification{Kind: KindNotFound, Failed: true}
	case http.StatusConflict:
		return Classification{Kind: KindConflict, Failed: true}
	case http.StatusTooManyRequests:
		return Classification{
			Kind:       KindTooManyRequests,
			Failed:     true,
			Retry:      true,
			RetryAfter: parseRetryAfter(header),
		}
	case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return Classification{Kind: KindInternalServerError, Failed: true, Retry: true}
	default:
		return Classification{Kind: KindUnknown, Failed: true}
	}
}

// parseRetryAfter reads Retry-After as delay seconds or an HTTP date.
func parseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}

	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}

	seconds, err := strconv.Atoi(value)
	if err == nil {
		if seconds < 0 {
			return 0
		}

		return time.Duration(seconds) * time.Second
	}

	when, err := http.ParseTime(value)
	if err != nil {
		return 0
	}

	wait := time.Until(when)
	if wait < 0 {
		return 0
	}

	return wait
}

// apiErrorMessage extracts the server's human-readable error text, if any.
func apiErrorMessage(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Help    string `json:"help"`
	}

	err := json.Unmarshal(body, &payload)
	if err != nil {
		return ""
	}

	switch {
	case payload.Error != "" && payload.Help != "":
		return payload.Error + " (" + payload.Help + ")"
	case payload.Error != "":
		return payload.Error
	default:
		return payload.Message
	}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) ErrorKind {
	apiErr := &Error{}
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return KindUnknown
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthenticated checks if the error is an unauthenticated error.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsRetryable checks if the error belongs to a retryable kind.
func IsRetryable(err error) bool {
	apiErr := &Error{}
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	return false
}
