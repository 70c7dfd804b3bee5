package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/seq/internal/auth"
	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/hashicorp/go-retryablehttp"
)

// Client is a retrying JSON HTTP client for the ledger API.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager auth.TokenManager
	userAgent    string
	logger       seq.Logger
	debug        bool
	retryMax     int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug output and retry warnings.
func WithLogger(logger seq.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig sets the retry count and backoff bounds. A negative
// retryMax disables retries.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		if retryMax < 0 {
			retryMax = 0
		}

		c.retryMax = retryMax
		c.httpClient.RetryMax = retryMax

		if waitMin > 0 {
			c.httpClient.RetryWaitMin = waitMin
		}

		if waitMax > 0 {
			c.httpClient.RetryWaitMax = waitMax
		}
	}
}

// WithTimeout bounds a single attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.HTTPClient.Timeout = timeout
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client, e.g. to use a custom
// transport in tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient.HTTPClient = httpClient
		}
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil when the
// ledger needs no credential.
func NewClient(baseURL string, tokenManager auth.TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   retryClient,
		tokenManager: tokenManager,
		userAgent:    constants.DefaultUserAgent,
		retryMax:     constants.DefaultRetryMax,
	}

	retryClient.CheckRetry = client.checkRetry
	retryClient.Backoff = jitterBackoff
	retryClient.RequestLogHook = client.logAttempt

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Request is a single logical HTTP call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
	// RetrySafe allows the client to re-send the request on a transient
	// failure. Requests that are not retry-safe get exactly one attempt.
	RetrySafe bool
}

// Response is the final response of a call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	RequestID  string
	Attempts   int
}

type attemptKey struct{}

type attemptState struct {
	retrySafe bool
	operation string
	attempts  int
}

// Do sends req, retrying retry-safe requests on transient failures. Failures
// are returned as *seq.APIError; the last response, if any, is returned with
// the error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var body []byte

	if req.Body != nil {
		var err error

		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	state := &attemptState{retrySafe: req.RetrySafe, operation: req.Path}
	ctx = context.WithValue(ctx, attemptKey{}, state)

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)

	if body != nil {
		httpReq.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get credential: %w", err)
		}

		httpReq.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":     req.Method,
			"url":        fullURL,
			"retry_safe": req.RetrySafe,
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request aborted after %d attempts: %w", state.attempts, ctxErr)
		}

		return nil, c.finalError(seq.NewConnectivityError(err), state)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.finalError(seq.NewConnectivityError(fmt.Errorf("reading response body: %w", err)), state)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
		RequestID:  httpResp.Header.Get(constants.HeaderRequestID),
		Attempts:   state.attempts,
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":     httpResp.StatusCode,
			"request_id": resp.RequestID,
			"attempts":   state.attempts,
		})
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		apiErr := seq.NewHTTPError(httpResp.StatusCode, respBody, resp.RequestID)
		resp.RequestID = apiErr.RequestID

		return resp, c.finalError(apiErr, state)
	}

	return resp, nil
}

// Post sends a retry-safe or one-shot JSON POST to path.
func (c *Client) Post(ctx context.Context, path string, body interface{}, retrySafe bool, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method:    http.MethodPost,
		Path:      path,
		Body:      body,
		Headers:   headers,
		RetrySafe: retrySafe,
	})
}

// finalError records the attempt count. A retryable failure of a retry-safe
// request has used up its retries by the time it surfaces.
func (c *Client) finalError(apiErr *seq.APIError, state *attemptState) *seq.APIError {
	if state.attempts == 0 {
		state.attempts = 1
	}

	if state.retrySafe && c.retryMax > 0 && apiErr.IsRetryable() {
		return apiErr.Exhausted(state.attempts)
	}

	apiErr.Attempts = state.attempts

	return apiErr
}

func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	state, _ := ctx.Value(attemptKey{}).(*attemptState)
	if state == nil || !state.retrySafe {
		return false, nil
	}

	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	if resp.StatusCode < http.StatusBadRequest {
		return false, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if readErr != nil {
		return true, nil
	}

	apiErr := seq.NewHTTPError(resp.StatusCode, body, resp.Header.Get(constants.HeaderRequestID))

	return apiErr.IsRetryable(), nil
}

func (c *Client) logAttempt(_ retryablehttp.Logger, req *http.Request, attempt int) {
	state, _ := req.Context().Value(attemptKey{}).(*attemptState)
	if state == nil {
		return
	}

	state.attempts = attempt + 1

	if attempt > 0 && c.logger != nil {
		c.logger.Warn("Retrying request", map[string]interface{}{
			"path":    state.operation,
			"attempt": attempt + 1,
		})
	}
}

// jitterBackoff is capped exponential backoff with the wait drawn from
// [wait/2, wait]. A server provided Retry-After is used unchanged.
func jitterBackoff(waitMin, waitMax time.Duration, attemptNum int, resp *http.Response) time.Duration {
	wait := retryablehttp.DefaultBackoff(waitMin, waitMax, attemptNum, resp)

	if resp != nil && resp.Header.Get(constants.HeaderRetryAfter) != "" {
		return wait
	}

	half := wait / 2
	if half <= 0 {
		return wait
	}

	return half + rand.N(half+1)
}
