package seq

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// ErrorKind classifies a failed call.
type ErrorKind int

const (
	// KindConnectivity covers network failures and temporary overload.
	KindConnectivity ErrorKind = iota + 1
	// KindRequest means the server rejected the request shape.
	KindRequest
	// KindApplication means the server refused the operation itself.
	KindApplication
	// KindDecode means a success response did not match the expected type.
	KindDecode
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindRequest:
		return "request"
	case KindApplication:
		return "application"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Codes assigned locally when the server did not provide one.
const (
	CodeConnectivity = "CONNECTIVITY"
	CodeDecode       = "DECODE"
)

// Static errors for err113 compliance.
var (
	ErrNoMoreItems           = errors.New("no more items")
	ErrServiceUnavailable    = errors.New("service unavailable")
	ErrConfigRequired        = errors.New("config is required")
	ErrAPIEndpointRequired   = errors.New("API endpoint is required")
	ErrLedgerRequired        = errors.New("ledger name is required")
	ErrOperationRequired     = errors.New("operation is required")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker is open")
	ErrCheckpointNotFound    = errors.New("checkpoint not found")
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS checkpoint store")
	ErrFileConfigRequired    = errors.New("file path required for file checkpoint store")
	ErrUnsupportedCheckpoint = errors.New("unsupported checkpoint store type")
	ErrMissingCursor         = errors.New("page is not the last but carries no cursor")
)

// APIError is a structured failure of a ledger call.
type APIError struct {
	Kind       ErrorKind `json:"-"`
	StatusCode int       `json:"-"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	// Retryable, when the server sets it, overrides default classification.
	Retryable *bool `json:"retryable,omitempty"`
	// Attempts is the number of attempts made before the error surfaced.
	Attempts int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}

	if e.RequestID != "" {
		msg += " [request_id: " + e.RequestID + "]"
	}

	if e.cause != nil && e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}

	return msg
}

// Unwrap exposes the underlying network error or ErrServiceUnavailable.
func (e *APIError) Unwrap() error {
	return e.cause
}

// IsRetryable reports whether the failure is transient. An explicit server
// flag wins over the default for the error kind.
func (e *APIError) IsRetryable() bool {
	if e.Retryable != nil {
		return *e.Retryable
	}

	return e.Kind == KindConnectivity
}

// Exhausted returns a copy of e marking it as the final failure after the
// given number of attempts. Connectivity failures wrap ErrServiceUnavailable.
func (e *APIError) Exhausted(attempts int) *APIError {
	out := *e
	out.Attempts = attempts

	if e.Kind == KindConnectivity {
		if e.cause != nil {
			out.cause = fmt.Errorf("%w: %w", ErrServiceUnavailable, e.cause)
		} else {
			out.cause = ErrServiceUnavailable
		}
	}

	return &out
}

// NewConnectivityError wraps a transport-level failure that produced no
// HTTP response.
func NewConnectivityError(cause error) *APIError {
	return &APIError{
		Kind:    KindConnectivity,
		Code:    CodeConnectivity,
		Message: cause.Error(),
		cause:   cause,
	}
}

// NewHTTPError builds an APIError from a non-2xx response. The body is parsed
// as a structured failure when possible; the request id header is used when
// the body does not carry one.
func NewHTTPError(statusCode int, body []byte, requestID string) *APIError {
	apiErr := &APIError{}

	if len(body) == 0 || json.Unmarshal(body, apiErr) != nil || apiErr.Code == "" {
		apiErr = &APIError{
			Code:    "HTTP_" + strconv.Itoa(statusCode),
			Message: http.StatusText(statusCode),
		}
	}

	apiErr.StatusCode = statusCode
	apiErr.Kind = KindForStatus(statusCode)

	if apiErr.RequestID == "" {
		apiErr.RequestID = requestID
	}

	return apiErr
}

// KindForStatus maps an HTTP failure status to an error kind.
func KindForStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindConnectivity
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return KindApplication
	}

	if statusCode >= http.StatusInternalServerError {
		return KindApplication
	}

	return KindRequest
}

// DecodeError reports a success response that did not match the expected type.
type DecodeError struct {
	Operation  string
	StatusCode int
	RequestID  string
	Err        error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s response (status %d): %v", e.Operation, e.StatusCode, e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a failure, or 0 if err is not a ledger error.
func KindOf(err error) ErrorKind {
	decodeErr := &DecodeError{}
	if errors.As(err, &decodeErr) {
		return KindDecode
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return 0
}

// IsConnectivity checks if the error is a network or overload failure.
func IsConnectivity(err error) bool {
	return KindOf(err) == KindConnectivity
}

// IsRequestRejected checks if the server rejected the request shape.
func IsRequestRejected(err error) bool {
	return KindOf(err) == KindRequest
}

// IsApplication checks if the server refused the operation.
func IsApplication(err error) bool {
	return KindOf(err) == KindApplication
}

// IsDecode checks if the response could not be decoded.
func IsDecode(err error) bool {
	return KindOf(err) == KindDecode
}

// IsRetryable checks if the error is transient.
func IsRetryable(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	return false
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}

	return false
}

// RequestIDOf returns the server request id carried by err, if any.
func RequestIDOf(err error) string {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.RequestID
	}

	decodeErr := &DecodeError{}
	if errors.As(err, &decodeErr) {
		return decodeErr.RequestID
	}

	return ""
}
