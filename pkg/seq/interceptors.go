package seq

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Request represents a ledger call that can be intercepted.
type Request struct {
	Operation string
	Method    string
	Path      string
	Headers   http.Header
	Body      []byte
	Metadata  map[string]interface{}
}

// Response represents the outcome of a ledger call after retries.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// RequestInterceptor is called before a call is sent.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor is called once the call has completed.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain manages a chain of interceptors.
type InterceptorChain struct {
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{
		requestInterceptors:  make([]RequestInterceptor, 0),
		responseInterceptors: make([]ResponseInterceptor, 0),
	}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.requestInterceptors = append(c.requestInterceptors, interceptor)
}

// AddResponseInterceptor adds a response interceptor to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.responseInterceptors = append(c.responseInterceptors, interceptor)
}

// ExecuteRequestInterceptors runs all request interceptors in order.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	for _, interceptor := range c.requestInterceptors {
		err := interceptor(ctx, req)
		if err != nil {
			return fmt.Errorf("request interceptor failed: %w", err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors runs all response interceptors in order.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	for _, interceptor := range c.responseInterceptors {
		err := interceptor(ctx, req, resp)
		if err != nil {
			return fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	return nil
}

// LoggingInterceptor logs outgoing calls.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		logger.Debug("ledger call", map[string]interface{}{
			"operation": req.Operation,
			"path":      req.Path,
		})

		return nil
	}
}

// LoggingResponseInterceptor logs call outcomes.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		fields := map[string]interface{}{
			"operation":   req.Operation,
			"status_code": resp.StatusCode,
		}

		if resp.Error != nil {
			fields["error"] = resp.Error.Error()
			if requestID := RequestIDOf(resp.Error); requestID != "" {
				fields["request_id"] = requestID
			}

			logger.Error("ledger call failed", fields)
		} else {
			logger.Debug("ledger call completed", fields)
		}

		return nil
	}
}

// HeaderInterceptor adds custom headers to requests.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		for key, value := range headers {
			req.Headers.Set(key, value)
		}

		return nil
	}
}

// RateLimitInterceptor limits the client to requestsPerSecond calls with the
// given burst. It blocks until a token is available or ctx is done.
func RateLimitInterceptor(requestsPerSecond float64, burst int) RequestInterceptor {
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)

	return func(ctx context.Context, req *Request) error {
		err := limiter.Wait(ctx)
		if err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}

		return nil
	}
}

const metaStartTime = "start_time"

// MetricsCollector records call counts, failures and latency per operation.
type MetricsCollector struct {
	started *prometheus.CounterVec
	calls   *prometheus.CounterVec
	errors  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewMetricsCollector creates a collector and registers it with reg. A nil
// reg leaves the metrics unregistered.
func NewMetricsCollector(reg prometheus.Registerer) (*MetricsCollector, error) {
	collector := &MetricsCollector{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seq",
			Subsystem: "client",
			Name:      "calls_started_total",
			Help:      "Ledger calls that entered the interceptor chain, by operation.",
		}, []string{"operation"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seq",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Completed ledger calls by operation.",
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seq",
			Subsystem: "client",
			Name:      "errors_total",
			Help:      "Failed ledger calls by operation and error kind.",
		}, []string{"operation", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "seq",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Ledger call latency including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	if reg == nil {
		return collector, nil
	}

	for _, c := range []prometheus.Collector{collector.started, collector.calls, collector.errors, collector.latency} {
		err := reg.Register(c)
		if err != nil {
			return nil, fmt.Errorf("registering client metrics: %w", err)
		}
	}

	return collector, nil
}

// Started returns the counter of calls begun for operation. It exceeds Calls
// by the calls a later request interceptor rejected.
func (m *MetricsCollector) Started(operation string) prometheus.Counter {
	return m.started.WithLabelValues(operation)
}

// Calls returns the completed call counter for operation.
func (m *MetricsCollector) Calls(operation string) prometheus.Counter {
	return m.calls.WithLabelValues(operation)
}

// Errors returns the failure counter for operation and kind.
func (m *MetricsCollector) Errors(operation string, kind ErrorKind) prometheus.Counter {
	return m.errors.WithLabelValues(operation, kind.String())
}

// MetricsRequestInterceptor counts the call as started and records its start
// time.
func MetricsRequestInterceptor(collector *MetricsCollector) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		collector.started.WithLabelValues(req.Operation).Inc()

		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[metaStartTime] = time.Now()

		return nil
	}
}

// MetricsResponseInterceptor records the call outcome.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		collector.calls.WithLabelValues(req.Operation).Inc()

		if startTime, ok := req.Metadata[metaStartTime].(time.Time); ok {
			collector.latency.WithLabelValues(req.Operation).Observe(time.Since(startTime).Seconds())
		}

		if resp.Error != nil {
			collector.errors.WithLabelValues(req.Operation, KindOf(resp.Error).String()).Inc()
		}

		return nil
	}
}

// CircuitBreakerConfig tunes a CircuitBreaker.
type CircuitBreakerConfig struct {
	Threshold        int           // Number of failures before opening
	Timeout          time.Duration // Time before trying again
	SuccessThreshold int           // Number of successes to close
}

// CircuitBreaker stops sending calls after repeated connectivity or server
// failures. It is safe for concurrent use.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu          sync.Mutex
	failures    int
	successes   int
	state       string
	lastFailure time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = &CircuitBreakerConfig{
			Threshold:        constants.CircuitBreakerThreshold,
			Timeout:          constants.CircuitBreakerTimeout,
			SuccessThreshold: constants.CircuitBreakerSuccessThreshold,
		}
	}

	return &CircuitBreaker{
		config: config,
		state:  constants.StatusClosed,
	}
}

// State returns "closed", "open" or "half-open".
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

func (b *CircuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != constants.StatusOpen {
		return true
	}

	if time.Since(b.lastFailure) > b.config.Timeout {
		b.state = constants.StatusHalfOpen
		b.successes = 0

		return true
	}

	return false
}

func (b *CircuitBreaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.failures++
		b.lastFailure = time.Now()

		if b.failures >= b.config.Threshold || b.state == constants.StatusHalfOpen {
			b.state = constants.StatusOpen
		}

		return
	}

	switch b.state {
	case constants.StatusHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = constants.StatusClosed
			b.failures = 0
		}
	case constants.StatusClosed:
		b.failures = 0
	}
}

// CircuitBreakerRequestInterceptor rejects calls while the circuit is open.
func CircuitBreakerRequestInterceptor(breaker *CircuitBreaker) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if !breaker.allow() {
			return ErrCircuitBreakerOpen
		}

		return nil
	}
}

// CircuitBreakerResponseInterceptor updates circuit state. Only connectivity
// failures and 5xx responses count against the circuit.
func CircuitBreakerResponseInterceptor(breaker *CircuitBreaker) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		failed := IsConnectivity(resp.Error) || resp.StatusCode >= http.StatusInternalServerError
		breaker.record(failed)

		return nil
	}
}
