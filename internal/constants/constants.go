package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration and checkpoint files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for a single HTTP attempt.
	DefaultHTTPTimeout = 30 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default number of retries after the first attempt.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the base backoff between retries.
	DefaultRetryWaitMin = 250 * time.Millisecond

	// DefaultRetryWaitMax caps the backoff between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Concurrency limits.
const (
	// DefaultConcurrencyLimit limits concurrent batch operations.
	DefaultConcurrencyLimit = 5

	// DefaultBatchTimeout bounds a single batch operation.
	DefaultBatchTimeout = 30 * time.Second
)

// HTTP headers.
const (
	HeaderAccept         = "Accept"
	HeaderAuthorization  = "Authorization"
	HeaderContentType    = "Content-Type"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "X-Request-Id"
	HeaderRetryAfter     = "Retry-After"
	HeaderUserAgent      = "User-Agent"

	ContentTypeJSON = "application/json"

	// DefaultUserAgent is sent when the caller does not override it.
	DefaultUserAgent = "seq-go/1.0"
)

// Pagination limits.
const (
	// StandardPageSize is the default page size used by the CLI.
	StandardPageSize = 50

	// MaxPageSize is the largest page size the CLI accepts.
	MaxPageSize = 1000
)

// Circuit breaker defaults.
const (
	CircuitBreakerThreshold        = 5
	CircuitBreakerSuccessThreshold = 2
	CircuitBreakerTimeout          = 30 * time.Second

	StatusClosed   = "closed"
	StatusOpen     = "open"
	StatusHalfOpen = "half-open"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"

	// JSONIndentSize is the indent used for JSON and YAML output.
	JSONIndentSize = 2
)

// Checkpoint backends.
const (
	CheckpointTypeFile   = "file"
	CheckpointTypeMemory = "memory"
	CheckpointTypeNATS   = "nats"
	CheckpointTypeNone   = "none"

	// DefaultCheckpointBucket is the JetStream KV bucket for cursors.
	DefaultCheckpointBucket = "seq_checkpoints"

	// DefaultCheckpointFile is the file name used under the config directory.
	DefaultCheckpointFile = "checkpoints.yml"
)

// Display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret replaces credentials in displayed configuration.
	MaskedSecret = "***"
)
