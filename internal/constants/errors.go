package constants

import "errors"

// Configuration errors.
var (
	ErrNoAPIConfigured      = errors.New("no API endpoint configured, use 'seq config set api <url>'")
	ErrNoLedgerConfigured   = errors.New("no ledger configured, use 'seq config set ledger <name>'")
	ErrUnknownConfigKey     = errors.New("unknown configuration key")
	ErrCredentialRequired   = errors.New("credential is required")
	ErrUnsupportedOutput    = errors.New("unsupported output format")
	ErrUnsupportedCheckType = errors.New("unsupported checkpoint type")
	ErrInvalidRateLimit     = errors.New("rate_limit must be a non-negative number")
)

// Validation errors.
var (
	ErrAccountIDRequired     = errors.New("account flag is required")
	ErrFlavorIDRequired      = errors.New("--flavor flag is required")
	ErrAmountRequired        = errors.New("--amount must be positive")
	ErrTagsFormat            = errors.New("invalid tag format, expected key=value")
	ErrPageSizeOutOfRange    = errors.New("--page-size out of range")
	ErrCursorAndFilter       = errors.New("--cursor cannot be combined with --filter or --param")
	ErrCheckpointAndCursor   = errors.New("--checkpoint cannot be combined with --cursor")
	ErrNoAccountsInFile      = errors.New("no accounts found in file")
	ErrBatchCompletedFailure = errors.New("batch completed with failures")
)
