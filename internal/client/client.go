package client

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/seq/internal/auth"
	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/fivetwenty-io/seq/internal/http"
	"github.com/fivetwenty-io/seq/pkg/seq"
)

// Client implements the seq.Client interface over the ledger's JSON API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	ledger       string
	logger       seq.Logger
	interceptors *seq.InterceptorChain
}

// createTokenManager creates a token manager when a credential is configured.
func createTokenManager(config *seq.Config) auth.TokenManager {
	if config.Credential != "" {
		return auth.NewStaticTokenManager(config.Credential)
	}

	return nil // No authentication
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *seq.Config) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(&loggerAdapter{logger: config.Logger}))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	retryMax := config.RetryMax
	if retryMax == 0 {
		retryMax = constants.DefaultRetryMax
	}

	retryWaitMin := constants.DefaultRetryWaitMin
	if config.RetryWaitMin > 0 {
		retryWaitMin = config.RetryWaitMin
	}

	retryWaitMax := constants.DefaultRetryWaitMax
	if config.RetryWaitMax > 0 {
		retryWaitMax = config.RetryWaitMax
	}

	httpOpts = append(httpOpts, http.WithRetryConfig(retryMax, retryWaitMin, retryWaitMax))

	return httpOpts
}

func validate(config *seq.Config) error {
	if config == nil {
		return seq.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return seq.ErrAPIEndpointRequired
	}

	if config.Ledger == "" {
		return seq.ErrLedgerRequired
	}

	return nil
}

// New creates a new ledger client.
func New(ctx context.Context, config *seq.Config) (*Client, error) {
	err := validate(config)
	if err != nil {
		return nil, err
	}

	return NewWithTokenManager(config, createTokenManager(config))
}

// NewWithTokenManager creates a new ledger client with a custom token manager.
func NewWithTokenManager(config *seq.Config, tokenManager auth.TokenManager) (*Client, error) {
	err := validate(config)
	if err != nil {
		return nil, err
	}

	httpClient := http.NewClient(config.APIEndpoint, tokenManager, createHTTPClientOptions(config)...)

	return &Client{
		httpClient:   httpClient,
		baseURL:      strings.TrimSuffix(config.APIEndpoint, "/"),
		ledger:       config.Ledger,
		logger:       config.Logger,
		interceptors: config.Interceptors,
	}, nil
}

// Ledger returns the ledger the client addresses.
func (c *Client) Ledger() string {
	return c.ledger
}

// Invoke implements seq.Client.Invoke.
func (c *Client) Invoke(ctx context.Context, call *seq.Call, result interface{}) error {
	if call == nil || call.Operation == "" {
		return seq.ErrOperationRequired
	}

	body, err := json.Marshal(call.Payload)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", call.Operation, err)
	}

	req := &seq.Request{
		Operation: call.Operation,
		Method:    nethttp.MethodPost,
		Path:      "/" + url.PathEscape(c.ledger) + "/" + call.Operation,
		Headers:   make(nethttp.Header),
		Body:      body,
		Metadata:  make(map[string]interface{}),
	}

	if call.IdempotencyKey != "" {
		req.Headers.Set(constants.HeaderIdempotencyKey, call.IdempotencyKey)
	}

	if c.interceptors != nil {
		err = c.interceptors.ExecuteRequestInterceptors(ctx, req)
		if err != nil {
			return err
		}
	}

	headers := make(map[string]string, len(req.Headers))
	for key := range req.Headers {
		headers[key] = req.Headers.Get(key)
	}

	resp, err := c.httpClient.Post(ctx, req.Path, json.RawMessage(req.Body), call.RetrySafe(), headers)
	if err == nil && result != nil {
		err = decode(call.Operation, resp, result)
	}

	if c.interceptors != nil {
		interceptResp := &seq.Response{Error: err}
		if resp != nil {
			interceptResp.StatusCode = resp.StatusCode
			interceptResp.Headers = resp.Headers
			interceptResp.Body = resp.Body
		}

		interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, req, interceptResp)
		if err == nil && interceptErr != nil {
			return interceptErr
		}
	}

	return err
}

func decode(operation string, resp *http.Response, result interface{}) error {
	err := json.Unmarshal(resp.Body, result)
	if err != nil {
		return &seq.DecodeError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			RequestID:  requestID(resp),
			Err:        err,
		}
	}

	return nil
}

// requestID prefers the header and falls back to a request_id in the body.
func requestID(resp *http.Response) string {
	if resp.RequestID != "" {
		return resp.RequestID
	}

	var envelope struct {
		RequestID string `json:"request_id"`
	}

	if json.Unmarshal(resp.Body, &envelope) == nil {
		return envelope.RequestID
	}

	return ""
}

// loggerAdapter adapts seq.Logger for the HTTP layer.
type loggerAdapter struct {
	logger seq.Logger
}

func (l *loggerAdapter) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, fields)
}

func (l *loggerAdapter) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, fields)
}

func (l *loggerAdapter) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, fields)
}
