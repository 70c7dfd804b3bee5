package seq_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fivetwenty-io/seq/pkg/seq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterceptorChain_RequestInterceptors(t *testing.T) {
	t.Parallel()

	chain := seq.NewInterceptorChain()
	ctx := context.Background()

	var executionOrder []string

	chain.AddRequestInterceptor(func(ctx context.Context, req *seq.Request) error {
		executionOrder = append(executionOrder, "first")

		return nil
	})

	chain.AddRequestInterceptor(func(ctx context.Context, req *seq.Request) error {
		executionOrder = append(executionOrder, "second")

		return nil
	})

	err := chain.ExecuteRequestInterceptors(ctx, &seq.Request{Operation: "list-keys"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, executionOrder)
}

func TestInterceptorChain_StopsOnError(t *testing.T) {
	t.Parallel()

	chain := seq.NewInterceptorChain()
	errDenied := errors.New("denied")
	called := false

	chain.AddResponseInterceptor(func(ctx context.Context, req *seq.Request, resp *seq.Response) error {
		return errDenied
	})
	chain.AddResponseInterceptor(func(ctx context.Context, req *seq.Request, resp *seq.Response) error {
		called = true

		return nil
	})

	err := chain.ExecuteResponseInterceptors(context.Background(), &seq.Request{}, &seq.Response{})
	require.ErrorIs(t, err, errDenied)
	assert.False(t, called)
}

func TestHeaderInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := seq.HeaderInterceptor(map[string]string{
		"X-Custom-Header": "custom-value",
		"X-Tenant":        "acme",
	})

	req := &seq.Request{Operation: "list-accounts"}

	err := interceptor(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "custom-value", req.Headers.Get("X-Custom-Header"))
	assert.Equal(t, "acme", req.Headers.Get("X-Tenant"))
}

func TestLoggingInterceptors(t *testing.T) {
	t.Parallel()

	logger := &captureLogger{}
	req := &seq.Request{Operation: "transact", Path: "/treasury/transact"}

	require.NoError(t, seq.LoggingInterceptor(logger)(context.Background(), req))
	require.NoError(t, seq.LoggingResponseInterceptor(logger)(context.Background(), req, &seq.Response{
		StatusCode: http.StatusConflict,
		Error:      seq.NewHTTPError(http.StatusConflict, nil, "req-5"),
	}))

	require.Len(t, logger.entries, 2)
	assert.Equal(t, "ledger call", logger.entries[0].msg)
	assert.Equal(t, "ledger call failed", logger.entries[1].msg)
	assert.Equal(t, "req-5", logger.entries[1].fields["request_id"])
	assert.Equal(t, "transact", logger.entries[1].fields["operation"])
}

func TestRateLimitInterceptor(t *testing.T) {
	t.Parallel()

	interceptor := seq.RateLimitInterceptor(1, 1)
	req := &seq.Request{}

	require.NoError(t, interceptor(context.Background(), req))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := interceptor(ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestMetricsInterceptors(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()

	collector, err := seq.NewMetricsCollector(registry)
	require.NoError(t, err)

	requestInterceptor := seq.MetricsRequestInterceptor(collector)
	responseInterceptor := seq.MetricsResponseInterceptor(collector)

	for _, callErr := range []error{nil, seq.NewHTTPError(http.StatusServiceUnavailable, nil, "")} {
		req := &seq.Request{Operation: "list-accounts"}

		require.NoError(t, requestInterceptor(context.Background(), req))
		require.NoError(t, responseInterceptor(context.Background(), req, &seq.Response{Error: callErr}))
	}

	rejectedDownstream := &seq.Request{Operation: "list-accounts"}
	require.NoError(t, requestInterceptor(context.Background(), rejectedDownstream))

	assert.InDelta(t, 3, testutil.ToFloat64(collector.Started("list-accounts")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(collector.Calls("list-accounts")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(collector.Errors("list-accounts", seq.KindConnectivity)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(collector.Errors("list-accounts", seq.KindRequest)), 0)

	count, err := testutil.GatherAndCount(registry, "seq_client_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = seq.NewMetricsCollector(registry)
	require.Error(t, err)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	failed := &seq.Response{Error: seq.NewConnectivityError(errors.New("refused"))}
	serverError := &seq.Response{StatusCode: http.StatusInternalServerError}
	rejected := &seq.Response{StatusCode: http.StatusBadRequest, Error: seq.NewHTTPError(http.StatusBadRequest, nil, "")}
	ok := &seq.Response{StatusCode: http.StatusOK}

	t.Run("opens after threshold", func(t *testing.T) {
		t.Parallel()

		breaker := seq.NewCircuitBreaker(&seq.CircuitBreakerConfig{Threshold: 2, Timeout: time.Hour, SuccessThreshold: 1})
		before := seq.CircuitBreakerRequestInterceptor(breaker)
		after := seq.CircuitBreakerResponseInterceptor(breaker)
		req := &seq.Request{}

		require.NoError(t, before(context.Background(), req))
		require.NoError(t, after(context.Background(), req, failed))
		assert.Equal(t, "closed", breaker.State())

		require.NoError(t, after(context.Background(), req, serverError))
		assert.Equal(t, "open", breaker.State())

		err := before(context.Background(), req)
		require.ErrorIs(t, err, seq.ErrCircuitBreakerOpen)
	})

	t.Run("request rejections do not count", func(t *testing.T) {
		t.Parallel()

		breaker := seq.NewCircuitBreaker(&seq.CircuitBreakerConfig{Threshold: 1, Timeout: time.Hour, SuccessThreshold: 1})
		after := seq.CircuitBreakerResponseInterceptor(breaker)

		require.NoError(t, after(context.Background(), &seq.Request{}, rejected))
		assert.Equal(t, "closed", breaker.State())
	})

	t.Run("half open closes after successes", func(t *testing.T) {
		t.Parallel()

		breaker := seq.NewCircuitBreaker(&seq.CircuitBreakerConfig{Threshold: 1, Timeout: time.Millisecond, SuccessThreshold: 2})
		before := seq.CircuitBreakerRequestInterceptor(breaker)
		after := seq.CircuitBreakerResponseInterceptor(breaker)
		req := &seq.Request{}

		require.NoError(t, after(context.Background(), req, failed))
		assert.Equal(t, "open", breaker.State())

		time.Sleep(5 * time.Millisecond)

		require.NoError(t, before(context.Background(), req))
		assert.Equal(t, "half-open", breaker.State())

		require.NoError(t, after(context.Background(), req, ok))
		assert.Equal(t, "half-open", breaker.State())

		require.NoError(t, after(context.Background(), req, ok))
		assert.Equal(t, "closed", breaker.State())
	})

	t.Run("failure while half open reopens", func(t *testing.T) {
		t.Parallel()

		breaker := seq.NewCircuitBreaker(&seq.CircuitBreakerConfig{Threshold: 3, Timeout: time.Millisecond, SuccessThreshold: 2})
		before := seq.CircuitBreakerRequestInterceptor(breaker)
		after := seq.CircuitBreakerResponseInterceptor(breaker)
		req := &seq.Request{}

		for range 3 {
			require.NoError(t, after(context.Background(), req, failed))
		}

		time.Sleep(5 * time.Millisecond)

		require.NoError(t, before(context.Background(), req))
		require.NoError(t, after(context.Background(), req, failed))
		assert.Equal(t, "open", breaker.State())
	})

	t.Run("default config", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "closed", seq.NewCircuitBreaker(nil).State())
	})
}

type logEntry struct {
	msg    string
	fields map[string]interface{}
}

type captureLogger struct {
	entries []logEntry
}

func (l *captureLogger) Debug(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{msg: msg, fields: fields})
}

func (l *captureLogger) Info(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{msg: msg, fields: fields})
}

func (l *captureLogger) Warn(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{msg: msg, fields: fields})
}

func (l *captureLogger) Error(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{msg: msg, fields: fields})
}
