package vuser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Options configures a Context. The zero value is invalid; build one with
// NewContext.
type Options struct {
	BaseURL        string
	OpenTimeout    time.Duration
	ReadTimeout    time.Duration
	DefaultHeaders map[string]string
	Seed           int64

	// OnMetric, when set, is called synchronously after every completed
	// request, in addition to the request being appended to the Context's
	// own metrics slice. The Runner wires this to the shared Stats
	// aggregator so metrics become visible without waiting for the
	// virtual user to finish.
	OnMetric func(MetricRecord)

	// OnScenarioError mirrors OnMetric for ScenarioError values.
	OnScenarioError func(ScenarioError)
}

// Context holds all per-virtual-user state: the HTTP client bound to the
// scenario's base URL, a key-value store for data carried between steps, an
// append-only log of metrics and scenario errors, and the abort flag.
//
// A Context is owned by exactly one goroutine (one virtual user) and is not
// safe for concurrent use from multiple goroutines.
type Context struct {
	baseURL        *url.URL
	openTimeout    time.Duration
	readTimeout    time.Duration
	defaultHeaders map[string]string

	client *http.Client

	store          map[string]interface{}
	metrics        []MetricRecord
	scenarioErrors []ScenarioError
	aborted        bool
	currentScreen  string

	rng *rand.Rand

	onMetric        func(MetricRecord)
	onScenarioError func(ScenarioError)

	mu sync.Mutex // guards store; metrics/scenarioErrors are append-only from the owning goroutine only
}

// NewContext builds a Context from Options. It returns an error if BaseURL
// does not parse.
func NewContext(opts Options) (*Context, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base_url %q: %w", opts.BaseURL, err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range opts.DefaultHeaders {
		headers[k] = v
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Context{
		baseURL:         u,
		openTimeout:     opts.OpenTimeout,
		readTimeout:     opts.ReadTimeout,
		defaultHeaders:  headers,
		store:           make(map[string]interface{}),
		rng:             rand.New(rand.NewSource(seed)), //nolint:gosec
		onMetric:        opts.OnMetric,
		onScenarioError: opts.OnScenarioError,
	}, nil
}

// ensureClient lazily constructs the underlying *http.Client on first use
// and reuses it for the Context's lifetime, rebuilding it only if Reset is
// called after a transport-level failure.
func (c *Context) ensureClient() *http.Client {
	if c.client != nil {
		return c.client
	}
	dialer := &net.Dialer{Timeout: c.openTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: c.readTimeout,
	}
	c.client = &http.Client{Transport: transport}
	return c.client
}

// Reset discards the current HTTP client, forcing a fresh one (and fresh
// connections) on the next request. Call this after a transport error if
// the underlying connection may be poisoned.
func (c *Context) Reset() {
	c.client = nil
}

// Rand returns the Context's private random source, used by the executor
// to draw Choose branches deterministically under a fixed seed.
func (c *Context) Rand() *rand.Rand {
	return c.rng
}

// SetHeader sets a header sent with every subsequent request.
func (c *Context) SetHeader(key, value string) {
	c.defaultHeaders[key] = value
}

// Store returns the value previously saved under key, and whether it was
// present.
func (c *Context) Store(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	return v, ok
}

// SetStore saves a value under key for later retrieval by Store.
func (c *Context) SetStore(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = value
}

// Abort marks the virtual user's current scenario iteration as aborted.
// The executor checks Aborted after every step and stops walking the
// remaining steps once it is set. The flag is reset before each new
// iteration.
func (c *Context) Abort() {
	c.aborted = true
}

// Aborted reports whether Abort has been called since the last reset.
func (c *Context) Aborted() bool {
	return c.aborted
}

// ResetAborted clears the abort flag. Called by the executor between
// scenario iterations.
func (c *Context) ResetAborted() {
	c.aborted = false
}

// SetCurrentScreen records the screen the virtual user is currently
// executing, surfaced in live status/snapshot reporting.
func (c *Context) SetCurrentScreen(name string) {
	c.currentScreen = name
}

// CurrentScreen returns the screen set by the most recent SetCurrentScreen
// call.
func (c *Context) CurrentScreen() string {
	return c.currentScreen
}

// Metrics returns every MetricRecord recorded by this Context so far. The
// returned slice must not be mutated by the caller.
func (c *Context) Metrics() []MetricRecord {
	return c.metrics
}

// ScenarioErrors returns every ScenarioError recorded by this Context so
// far. The returned slice must not be mutated by the caller.
func (c *Context) ScenarioErrors() []ScenarioError {
	return c.scenarioErrors
}

// RecordScenarioError appends a ScenarioError for screen and notifies
// OnScenarioError if set. Used by the executor when a screen function
// returns an error.
func (c *Context) RecordScenarioError(screen string, err error) {
	rec := ScenarioError{Screen: screen, Err: err, At: time.Now()}
	c.scenarioErrors = append(c.scenarioErrors, rec)
	if c.onScenarioError != nil {
		c.onScenarioError(rec)
	}
}

// requestOptions configures a single HTTP call.
type requestOptions struct {
	headers map[string]string
	query   url.Values
	body    []byte
	name    string
}

// RequestOption customizes one HTTP call made via Get/Post/Put/Patch/Delete.
type RequestOption func(*requestOptions)

// WithHeader adds a header to a single request, in addition to the
// Context's default headers.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithQuery adds a query parameter to a single request.
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = make(url.Values)
		}
		o.query.Add(key, value)
	}
}

// WithJSON marshals v as the request body and sets Content-Type:
// application/json.
func WithJSON(v interface{}) RequestOption {
	return func(o *requestOptions) {
		data, err := json.Marshal(v)
		if err != nil {
			// Surfaced as a transport-style response by do(); this avoids
			// a panic deep inside a scenario step.
			o.body = []byte(fmt.Sprintf("__marshal_error__:%v", err))
			return
		}
		o.body = data
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers["Content-Type"] = "application/json"
	}
}

// WithBody sets a raw request body.
func WithBody(body []byte) RequestOption {
	return func(o *requestOptions) { o.body = body }
}

// WithMetricName overrides the name recorded in the MetricRecord for this
// request (default: "<METHOD> <path>").
func WithMetricName(name string) RequestOption {
	return func(o *requestOptions) { o.name = name }
}

// Get issues a GET request to path, resolved against the Context's base URL.
func (c *Context) Get(ctx context.Context, path string, opts ...RequestOption) Response {
	return c.do(ctx, http.MethodGet, path, opts...)
}

// Post issues a POST request.
func (c *Context) Post(ctx context.Context, path string, opts ...RequestOption) Response {
	return c.do(ctx, http.MethodPost, path, opts...)
}

// Put issues a PUT request.
func (c *Context) Put(ctx context.Context, path string, opts ...RequestOption) Response {
	return c.do(ctx, http.MethodPut, path, opts...)
}

// Patch issues a PATCH request.
func (c *Context) Patch(ctx context.Context, path string, opts ...RequestOption) Response {
	return c.do(ctx, http.MethodPatch, path, opts...)
}

// Delete issues a DELETE request.
func (c *Context) Delete(ctx context.Context, path string, opts ...RequestOption) Response {
	return c.do(ctx, http.MethodDelete, path, opts...)
}

func (c *Context) do(ctx context.Context, method, path string, opts ...RequestOption) Response {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	name := ro.name
	if name == "" {
		name = fmt.Sprintf("%s %s", method, path)
	}

	start := time.Now()
	var resp *http.Response
	var err error
	if msg, bad := bytes.CutPrefix(ro.body, []byte("__marshal_error__:")); bad {
		err = fmt.Errorf("marshal json body: %s", msg)
	} else {
		resp, err = c.roundTrip(ctx, method, path, ro)
	}
	duration := time.Since(start)

	var rec MetricRecord
	var result Response
	if err != nil {
		rec = MetricRecord{Name: name, Method: method, Path: path, Duration: duration, Success: false, Error: err.Error(), At: start}
		result = transportResponse(err)
	} else {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			rec = MetricRecord{Name: name, Method: method, Path: path, Status: resp.StatusCode, Duration: time.Since(start), Success: false, Error: readErr.Error(), At: start}
			result = transportResponse(readErr)
		} else {
			success := resp.StatusCode >= 200 && resp.StatusCode < 300
			rec = MetricRecord{Name: name, Method: method, Path: path, Status: resp.StatusCode, Duration: duration, Success: success, At: start}
			result = httpResponse(resp.StatusCode, body)
		}
	}

	c.metrics = append(c.metrics, rec)
	if c.onMetric != nil {
		c.onMetric(rec)
	}
	return result
}

func (c *Context) roundTrip(ctx context.Context, method, path string, ro requestOptions) (*http.Response, error) {
	u := *c.baseURL
	u.Path = joinPath(u.Path, path)
	if ro.query != nil {
		u.RawQuery = ro.query.Encode()
	}

	var bodyReader io.Reader
	if ro.body != nil {
		bodyReader = bytes.NewReader(ro.body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.ensureClient().Do(req)
	if err != nil {
		c.Reset()
		return nil, err
	}
	return resp, nil
}

func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	if rel[0] == '/' {
		if base == "" || base == "/" {
			return rel
		}
		trimmed := base
		for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
			trimmed = trimmed[:len(trimmed)-1]
		}
		return trimmed + rel
	}
	if base == "" {
		return "/" + rel
	}
	if base[len(base)-1] == '/' {
		return base + rel
	}
	return base + "/" + rel
}
