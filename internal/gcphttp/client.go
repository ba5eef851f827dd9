// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gcphttp builds the resilient, authenticated HTTP client used to
// talk to Google Cloud APIs.
package gcphttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

type circuitOptions struct {
	name        string
	logger      *zap.Logger
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	tripCount   uint32
	statusCodes []int
}

// CircuitOption configures the circuit breaker installed by [CircuitBreaker].
type CircuitOption func(*circuitOptions)

// CircuitName names the breaker and its logger.
func CircuitName(name string) CircuitOption {
	return func(co *circuitOptions) {
		co.name = name
	}
}

// CircuitLogger receives breaker state changes.
func CircuitLogger(logger *zap.Logger) CircuitOption {
	return func(co *circuitOptions) {
		co.logger = logger
	}
}

// CircuitMaxRequests is the number of requests let through while half-open.
func CircuitMaxRequests(n uint32) CircuitOption {
	return func(co *circuitOptions) {
		co.maxRequests = n
	}
}

// CircuitInterval is how often failure counts are cleared while closed.
// Zero never clears them.
func CircuitInterval(interval time.Duration) CircuitOption {
	return func(co *circuitOptions) {
		co.interval = interval
	}
}

// CircuitTimeout is how long the breaker stays open before going half-open.
func CircuitTimeout(timeout time.Duration) CircuitOption {
	return func(co *circuitOptions) {
		co.timeout = timeout
	}
}

// CircuitTripCount is the number of consecutive failures which open the breaker.
func CircuitTripCount(n uint32) CircuitOption {
	return func(co *circuitOptions) {
		co.tripCount = n
	}
}

// CircuitFailOnStatusCode counts responses with status code n as failures.
//
// Default: 429, 500, 502, 503, 504
func CircuitFailOnStatusCode(n int) CircuitOption {
	return func(co *circuitOptions) {
		co.statusCodes = append(co.statusCodes, n)
	}
}

// StatusCodeError marks a response the breaker counted as a failure.
// The response itself is still returned to the caller.
type StatusCodeError struct {
	StatusCode int
}

// Error implements the [builtin.error] interface.
func (e StatusCodeError) Error() string {
	return "received failure status code: " + strconv.Itoa(e.StatusCode)
}

// CircuitBreaker wraps rt so that consecutive failures stop requests from
// reaching the network until the breaker half-opens again. While open,
// requests fail with [gobreaker.ErrOpenState].
func CircuitBreaker(rt http.RoundTripper, opts ...CircuitOption) http.RoundTripper {
	co := &circuitOptions{
		name:        "gcp",
		logger:      zap.NewNop(),
		maxRequests: 1,
		timeout:     30 * time.Second,
		tripCount:   5,
	}
	for _, opt := range opts {
		opt(co)
	}
	if len(co.statusCodes) == 0 {
		co.statusCodes = []int{
			http.StatusTooManyRequests,     // 429
			http.StatusInternalServerError, // 500
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		}
	}
	codes := make(map[int]struct{}, len(co.statusCodes))
	for _, code := range co.statusCodes {
		codes[code] = struct{}{}
	}

	log := co.logger.Named(co.name)

	return &circuitRoundTripper{
		RoundTripper: rt,
		codes:        codes,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        co.name,
			MaxRequests: co.maxRequests,
			Interval:    co.interval,
			Timeout:     co.timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= co.tripCount
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				switch to {
				case gobreaker.StateOpen:
					log.Error("circuit has been opened")
				case gobreaker.StateHalfOpen:
					log.Warn("circuit is now half open", zap.Uint32("max_requests_allowed_through", co.maxRequests))
				case gobreaker.StateClosed:
					log.Info("circuit has been closed")
				}
			},
		}),
	}
}

type circuitRoundTripper struct {
	http.RoundTripper
	cb    *gobreaker.CircuitBreaker
	codes map[int]struct{}
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (any, error) {
		resp, err := rt.RoundTripper.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if _, ok := rt.codes[resp.StatusCode]; ok {
			return resp, StatusCodeError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})

	var sce StatusCodeError
	if errors.As(err, &sce) {
		return v.(*http.Response), nil
	}
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}

type retryOptions struct {
	logger     *zap.Logger
	maxRetries int
	waitMin    time.Duration
	waitMax    time.Duration
}

// RetryOption configures request retries.
type RetryOption func(*retryOptions)

func MinWaitDuration(min time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.waitMin = min
	}
}

func MaxWaitDuration(max time.Duration) RetryOption {
	return func(ro *retryOptions) {
		ro.waitMax = max
	}
}

func MaxRetries(n int) RetryOption {
	return func(ro *retryOptions) {
		ro.maxRetries = n
	}
}

func RetryAttemptLogger(logger *zap.Logger) RetryOption {
	return func(ro *retryOptions) {
		ro.logger = logger
	}
}

type clientOptions struct {
	timeout      time.Duration
	base         http.RoundTripper
	circuitOpts  []CircuitOption
	retryOptions *retryOptions
	googleOpts   []option.ClientOption
}

// ClientOption configures the client returned by [NewClient].
type ClientOption func(*clientOptions)

// ClientTimeout bounds every request, retries included.
func ClientTimeout(timeout time.Duration) ClientOption {
	return func(co *clientOptions) {
		co.timeout = timeout
	}
}

// WithBaseTransport replaces [http.DefaultTransport] underneath the
// authentication and tracing layers.
func WithBaseTransport(rt http.RoundTripper) ClientOption {
	return func(co *clientOptions) {
		co.base = rt
	}
}

// WithCircuitOptions passes opts to the circuit breaker.
func WithCircuitOptions(opts ...CircuitOption) ClientOption {
	return func(co *clientOptions) {
		co.circuitOpts = append(co.circuitOpts, opts...)
	}
}

// RetryRequests enables retries with exponential backoff.
func RetryRequests(opts ...RetryOption) ClientOption {
	return func(co *clientOptions) {
		ro := &retryOptions{
			logger:     zap.NewNop(),
			waitMin:    100 * time.Millisecond,
			waitMax:    5 * time.Second,
			maxRetries: 3,
		}
		for _, opt := range opts {
			opt(ro)
		}
		co.retryOptions = ro
	}
}

// WithGoogleOptions passes opts to the Google API transport, e.g. scopes
// or credentials.
func WithGoogleOptions(opts ...option.ClientOption) ClientOption {
	return func(co *clientOptions) {
		co.googleOpts = append(co.googleOpts, opts...)
	}
}

// Unauthenticated skips the Google API transport entirely. It is meant
// for emulators and tests.
func Unauthenticated() ClientOption {
	return WithGoogleOptions(option.WithoutAuthentication())
}

// NewClient returns an http.Client whose requests are traced, authenticated
// with Application Default Credentials, guarded by a circuit breaker and,
// optionally, retried.
func NewClient(ctx context.Context, opts ...ClientOption) (*http.Client, error) {
	co := &clientOptions{
		base: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(co)
	}

	rt, err := htransport.NewTransport(ctx, otelhttp.NewTransport(co.base), co.googleOpts...)
	if err != nil {
		return nil, err
	}
	rt = CircuitBreaker(rt, co.circuitOpts...)

	return newClient(rt, co), nil
}

func newClient(rt http.RoundTripper, co *clientOptions) *http.Client {
	c := &http.Client{
		Timeout:   co.timeout,
		Transport: rt,
	}
	if co.retryOptions == nil {
		return c
	}

	log := co.retryOptions.logger
	rc := retryablehttp.Client{
		HTTPClient:   c,
		Logger:       nil,
		RetryWaitMin: co.retryOptions.waitMin,
		RetryWaitMax: co.retryOptions.waitMax,
		RetryMax:     co.retryOptions.maxRetries,
		RequestLogHook: func(_ retryablehttp.Logger, req *http.Request, i int) {
			log.Debug("sending http request", zap.String("url", req.URL.String()), zap.Int("request_attempt_count", i))
		},
		ResponseLogHook: func(_ retryablehttp.Logger, resp *http.Response) {
			log.Debug("received http response", zap.String("url", resp.Request.URL.String()), zap.Int("http_status_code", resp.StatusCode))
		},
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return rc.StandardClient()
}
