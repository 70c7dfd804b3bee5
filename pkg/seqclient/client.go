// Package seqclient provides the main entry point for creating ledger clients.
package seqclient

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fivetwenty-io/seq/internal/client"
	"github.com/fivetwenty-io/seq/pkg/seq"
)

// Environment variables read by NewFromEnv.
const (
	EnvAPIEndpoint = "SEQ_API"
	EnvLedger      = "SEQ_LEDGER"
	EnvCredential  = "SEQ_CREDENTIAL"
)

// New creates a new ledger client. The config is copied; the endpoint is
// normalized by trimming a trailing slash and adding https:// when no scheme
// is given.
func New(ctx context.Context, config *seq.Config) (seq.Client, error) {
	if config == nil {
		return nil, seq.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, seq.ErrAPIEndpointRequired
	}

	if config.Ledger == "" {
		return nil, seq.ErrLedgerRequired
	}

	normalized := *config
	normalized.APIEndpoint = NormalizeEndpoint(config.APIEndpoint)

	c, err := client.New(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// NormalizeEndpoint trims a trailing slash and defaults the scheme to https.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}

// NewWithCredential creates a client for ledger at endpoint using credential.
func NewWithCredential(ctx context.Context, endpoint, ledger, credential string) (seq.Client, error) {
	return New(ctx, &seq.Config{
		APIEndpoint: endpoint,
		Ledger:      ledger,
		Credential:  credential,
	})
}

// NewFromEnv creates a client from SEQ_API, SEQ_LEDGER and SEQ_CREDENTIAL.
func NewFromEnv(ctx context.Context) (seq.Client, error) {
	return New(ctx, &seq.Config{
		APIEndpoint: os.Getenv(EnvAPIEndpoint),
		Ledger:      os.Getenv(EnvLedger),
		Credential:  os.Getenv(EnvCredential),
	})
}
