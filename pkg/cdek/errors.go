package cdek

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors. The typed errors below match their kind sentinel through errors.Is.
var (
	// ErrConnection indicates a transport failure or a non-2xx HTTP status.
	ErrConnection = errors.New("cdek connection error")

	// ErrApplication indicates a business error reported by the carrier.
	ErrApplication = errors.New("cdek application error")

	// ErrMalformedResponse indicates a body that does not parse into the expected shape.
	ErrMalformedResponse = errors.New("cdek malformed response")

	// ErrInvalidRequest indicates caller input rejected before any network call.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConflictingCredentials indicates both explicit credentials and sandbox mode were requested.
	ErrConflictingCredentials = errors.New("explicit credentials and sandbox mode are mutually exclusive")

	// ErrMissingCredentials indicates production mode without a login or secret.
	ErrMissingCredentials = errors.New("login and secret are required outside sandbox mode")
)

// ConnectionError is returned when the request could not be delivered or
// the carrier answered with a non-2xx status.
type ConnectionError struct {
	Operation  Operation
	StatusCode int
	Body       []byte
	Cause      error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cdek %s: connection error: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("cdek %s: connection error: HTTP %d: %s", e.Operation, e.StatusCode, truncate(e.Body, 256))
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// ErrorDetail is a single carrier error entry.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts both numeric and string codes and both the "text"
// and "message" spellings used by the calculator.
func (d *ErrorDetail) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    json.RawMessage `json:"code"`
		Text    string          `json:"text"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	code := strings.Trim(string(raw.Code), `"`)
	if code != "" && code != "null" {
		n, err := strconv.Atoi(code)
		if err != nil {
			return fmt.Errorf("error code %q: %w", code, err)
		}
		d.Code = n
	}
	d.Message = raw.Message
	if d.Message == "" {
		d.Message = raw.Text
	}
	return nil
}

// ApplicationError is a business error reported by the carrier: an
// infeasible tariff, a validation failure, bad credentials.
type ApplicationError struct {
	Operation Operation

	// Details holds the parsed JSON error array. Empty for XML operations.
	Details []ErrorDetail

	// Code and Message carry the XML ErrorCode and Msg attributes.
	Code    string
	Message string

	// Payload is the carrier's original response body, untouched.
	Payload []byte
}

// Error implements the error interface.
func (e *ApplicationError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("cdek %s error (%s): %s", e.Operation, e.Code, e.Message)
	case len(e.Details) > 0:
		parts := make([]string, len(e.Details))
		for i, d := range e.Details {
			parts[i] = fmt.Sprintf("%d: %s", d.Code, d.Message)
		}
		return fmt.Sprintf("cdek %s error: %s", e.Operation, strings.Join(parts, "; "))
	default:
		return fmt.Sprintf("cdek %s error: %s", e.Operation, truncate(e.Payload, 256))
	}
}

// Is reports whether target is ErrApplication.
func (e *ApplicationError) Is(target error) bool {
	return target == ErrApplication
}

// HasCode reports whether the carrier returned the given numeric error code.
func (e *ApplicationError) HasCode(code int) bool {
	for _, d := range e.Details {
		if d.Code == code {
			return true
		}
	}
	return e.Code == strconv.Itoa(code)
}

// MalformedResponseError is returned when a 2xx body does not parse into the
// shape expected for the operation.
type MalformedResponseError struct {
	Operation Operation
	Body      []byte
	Cause     error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cdek %s: malformed response: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("cdek %s: malformed response: %s", e.Operation, truncate(e.Body, 256))
}

// Unwrap returns the underlying cause.
func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// IsRetryable reports whether a caller may reasonably retry the call.
// The client itself never retries.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Cause != nil || connErr.StatusCode >= 500
	}
	return false
}

// ErrorType returns a short label for the error kind, used for metrics.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrApplication):
		return "application"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrConnection):
		return "connection"
	default:
		return "unknown"
	}
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func truncate(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
