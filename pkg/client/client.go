// Package client provides the request pipeline: cache lookup, connectivity
// check, interceptors, the HTTP call, status validation, decoding and the
// cache write.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/connectivity"
	"github.com/Sternrassler/campus-menu-client/pkg/recovery"
)

// DefaultTimeout applies to endpoints without their own timeout.
const DefaultTimeout = 30 * time.Second

// ErrStoreRequired is returned by New without a cache store.
var ErrStoreRequired = errors.New("cache store is required")

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the buffered response handed to response interceptors.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *http.Request
}

// RequestInterceptor may mutate or reject an outgoing request.
type RequestInterceptor interface {
	InterceptRequest(ctx context.Context, req *http.Request) error
}

// ResponseInterceptor may inspect or reject a response before status
// validation.
type ResponseInterceptor interface {
	InterceptResponse(ctx context.Context, resp *Response) error
}

// RequestInterceptorFunc adapts a function to RequestInterceptor.
type RequestInterceptorFunc func(ctx context.Context, req *http.Request) error

// InterceptRequest implements RequestInterceptor.
func (f RequestInterceptorFunc) InterceptRequest(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}

// ResponseInterceptorFunc adapts a function to ResponseInterceptor.
type ResponseInterceptorFunc func(ctx context.Context, resp *Response) error

// InterceptResponse implements ResponseInterceptor.
func (f ResponseInterceptorFunc) InterceptResponse(ctx context.Context, resp *Response) error {
	return f(ctx, resp)
}

// Config holds the client configuration.
type Config struct {
	// HTTPClient defaults to a plain *http.Client.
	HTTPClient Doer

	// Cache is the store used for GET responses (required).
	Cache *cache.Store

	// Connectivity defaults to an always-connected source.
	Connectivity connectivity.Source

	// Interceptors run in order.
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor

	// CachePolicy is applied to every cache write. Defaults to cache.DefaultPolicy.
	CachePolicy cache.Policy

	// DefaultTimeout is used for endpoints with a zero timeout.
	DefaultTimeout time.Duration

	Logger zerolog.Logger
}

// Client executes Endpoints.
type Client struct {
	httpClient           Doer
	store                *cache.Store
	connectivity         connectivity.Source
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	policy               cache.Policy
	timeout              time.Duration
	logger               zerolog.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.Cache == nil {
		return nil, ErrStoreRequired
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Connectivity == nil {
		cfg.Connectivity = connectivity.NewStatic(connectivity.Connected)
	}
	if cfg.CachePolicy.TTL <= 0 {
		cfg.CachePolicy = cache.DefaultPolicy
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}

	return &Client{
		httpClient:           cfg.HTTPClient,
		store:                cfg.Cache,
		connectivity:         cfg.Connectivity,
		requestInterceptors:  cfg.RequestInterceptors,
		responseInterceptors: cfg.ResponseInterceptors,
		policy:               cfg.CachePolicy,
		timeout:              cfg.DefaultTimeout,
		logger:               cfg.Logger,
	}, nil
}

type executeOptions struct {
	useCache bool
	policy   *cache.Policy
}

// ExecuteOption customises a single Execute call.
type ExecuteOption func(*executeOptions)

// WithCache enables or disables cache reads and writes (default enabled).
func WithCache(use bool) ExecuteOption {
	return func(o *executeOptions) { o.useCache = use }
}

// WithPolicy overrides the client's cache policy for one call.
func WithPolicy(policy cache.Policy) ExecuteOption {
	return func(o *executeOptions) { o.policy = &policy }
}

// Execute runs ep and decodes the JSON response into T.
//
// GET calls with caching enabled are answered from the cache when possible;
// the network is not contacted on a hit. Every failure is an *apperror.Error.
func Execute[T any](ctx context.Context, c *Client, ep Endpoint, opts ...ExecuteOption) (T, error) {
	var out T
	err := c.ExecuteInto(ctx, ep, &out, opts...)
	return out, err
}

// ExecuteInto is Execute with an explicit destination. A nil dst skips
// decoding and caching.
func (c *Client) ExecuteInto(ctx context.Context, ep Endpoint, dst any, opts ...ExecuteOption) error {
	o := executeOptions{useCache: true}
	for _, opt := range opts {
		opt(&o)
	}

	method := ep.HTTPMethod()
	key := ep.CacheKey()
	cacheable := dst != nil && o.useCache && method == http.MethodGet

	// Step 1: Cache
	if cacheable && c.store.Get(ctx, key, dst) {
		c.logger.Debug().Str("method", method).Str("path", ep.Path).Msg("Cache hit")
		requestsTotal.WithLabelValues(method, "cache_hit").Inc()
		return nil
	}

	// Step 2: Connectivity
	if c.connectivity.Status() == connectivity.Disconnected {
		if dst != nil && o.useCache && c.store.Get(ctx, key, dst) {
			c.logger.Debug().Str("path", ep.Path).Msg("Offline, served from cache")
			requestsTotal.WithLabelValues(method, "cache_hit").Inc()
			return nil
		}
		return c.fail(method, "offline", apperror.New(apperror.KindNoConnection))
	}

	if err := ctx.Err(); err != nil {
		return c.fail(method, "cancelled", recovery.Classify(err))
	}

	// Steps 3-7
	resp, err := c.roundTrip(ctx, ep)
	if err != nil {
		status := "error"
		if resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		return c.fail(method, status, err)
	}
	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	// Step 8: Decode. An empty body is only valid where HTTP defines none.
	if dst == nil || resp.StatusCode == http.StatusNoContent || method == http.MethodHead {
		return nil
	}
	if err := decodeJSON(resp.Body, dst); err != nil {
		return c.fail(method, "", err)
	}

	// Step 9: Cache write
	if cacheable && ctx.Err() == nil {
		policy := c.policy
		if o.policy != nil {
			policy = *o.policy
		}
		c.store.Put(ctx, key, dst, policy)
	}

	return nil
}

// roundTrip builds the request, runs the interceptors and the call, and
// validates the status code. Once a response exists it is returned alongside
// any error.
func (c *Client) roundTrip(ctx context.Context, ep Endpoint) (*Response, error) {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := ep.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	for _, interceptor := range c.requestInterceptors {
		if err := interceptor.InterceptRequest(ctx, req); err != nil {
			return nil, recovery.Classify(err)
		}
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
		return nil, recovery.Classify(err)
	}
	body, err := io.ReadAll(httpResp.Body)
	_ = httpResp.Body.Close()
	requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, recovery.Classify(fmt.Errorf("read response body: %w", err))
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Request:    req,
	}

	for _, interceptor := range c.responseInterceptors {
		if err := interceptor.InterceptResponse(ctx, resp); err != nil {
			return resp, recovery.Classify(err)
		}
	}

	if err := statusError(resp.StatusCode); err != nil {
		return resp, err
	}
	return resp, nil
}

// fail records a failed call and returns the categorized error.
func (c *Client) fail(method, status string, err error) error {
	appErr := recovery.Classify(err)
	if status != "" {
		requestsTotal.WithLabelValues(method, status).Inc()
	}
	errorsTotal.WithLabelValues(string(appErr.Category())).Inc()

	c.logger.Debug().
		Err(appErr).
		Str("method", method).
		Str("category", string(appErr.Category())).
		Msg("Request failed")
	return appErr
}

// Invalidate removes a cache entry.
func (c *Client) Invalidate(ctx context.Context, key string) {
	c.store.Remove(ctx, key)
}

// InvalidateEndpoint removes the cached response of ep.
func (c *Client) InvalidateEndpoint(ctx context.Context, ep Endpoint) {
	c.store.Remove(ctx, ep.CacheKey())
}

// ClearAll empties the cache.
func (c *Client) ClearAll(ctx context.Context) {
	c.store.Clear(ctx)
	c.logger.Info().Msg("Cache cleared")
}

// Cache returns the client's store.
func (c *Client) Cache() *cache.Store {
	return c.store
}

// statusError maps a non-2xx status to a categorized error.
func statusError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return apperror.New(apperror.KindRateLimitExceeded)
	default:
		return apperror.ServerError(status)
	}
}
