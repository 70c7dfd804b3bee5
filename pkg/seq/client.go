package seq

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Client sends one logical request to the ledger and decodes the response.
//
// Implementations own the retry policy. A nil result means the caller only
// needs a success acknowledgement and the response body is not decoded.
type Client interface {
	Invoke(ctx context.Context, call *Call, result interface{}) error
}

// Call describes a single ledger operation.
type Call struct {
	// Operation is the RPC name, e.g. "list-accounts".
	Operation string
	// Payload is serialized as the JSON request body.
	Payload interface{}
	// Idempotent marks the call as safe to re-send unchanged.
	Idempotent bool
	// IdempotencyKey is sent to the server so a non-idempotent call can be
	// re-executed safely. A call with a key is retried like an idempotent one.
	IdempotencyKey string
}

// RetrySafe reports whether the transport may re-send the call.
func (c *Call) RetrySafe() bool {
	return c.Idempotent || c.IdempotencyKey != ""
}

// NewIdempotencyKey returns a random key suitable for Call.IdempotencyKey.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a seq.Client.
//
// # Endpoint
//
// Requests are sent to "<APIEndpoint>/<Ledger>/<operation>". seqclient.New
// trims a trailing slash from APIEndpoint and adds "https://" when no scheme
// is present.
//
// # Timeouts and retries
//
// Per-call deadlines should be set on the context passed to each operation.
// HTTPTimeout bounds a single attempt. RetryMax is the number of retries after
// the first attempt: 0 selects the default, a negative value disables retries.
type Config struct {
	// APIEndpoint: base URL of the ledger API (e.g., "https://api.seq.com/team").
	APIEndpoint string
	// Ledger: name of the ledger all operations address.
	Ledger string
	// Credential: API credential sent as a Bearer token. Optional.
	Credential string

	// HTTPTimeout: per-attempt timeout. Zero selects the default.
	HTTPTimeout time.Duration
	// RetryMax: retries after the first attempt for retry-safe calls.
	RetryMax int
	// RetryWaitMin: base backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between retries.
	RetryWaitMax time.Duration
	// Debug: enables request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the transport.
	Logger Logger
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// Interceptors: optional chain run once per logical call.
	Interceptors *InterceptorChain
}

// SuccessMessage is the acknowledgement returned by update operations.
type SuccessMessage struct {
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}
