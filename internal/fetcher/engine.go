package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config controls an Engine. Zero values select the package defaults.
type Config struct {
	MaxConcurrency   int
	DefaultTimeout   time.Duration
	HostPollInterval time.Duration
	UserAgent        string
	Transport        TransportConfig
}

// Engine runs Jobs under a global concurrency cap with optional per-host
// serialization. It is safe for concurrent use; share one Engine per process.
type Engine struct {
	client         Doer
	gate           *Gate
	hosts          *HostLocks
	observer       Observer
	logger         *zap.Logger
	defaultTimeout time.Duration
	userAgent      string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClient injects the HTTP client used for every fetch.
func WithClient(client Doer) Option {
	return func(e *Engine) {
		if client != nil {
			e.client = client
		}
	}
}

// WithLogger sets the logger used for diagnostics and the default observer.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver replaces the default log observer.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// New builds an Engine. The concurrency cap is fixed for the Engine's lifetime.
func New(cfg Config, opts ...Option) *Engine {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &Engine{
		gate:           NewGate(cfg.MaxConcurrency),
		hosts:          NewHostLocks(cfg.HostPollInterval),
		logger:         zap.NewNop(),
		defaultTimeout: timeout,
		userAgent:      cfg.UserAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = NewHTTPClient(cfg.Transport)
	}
	if e.observer == nil {
		e.observer = NewLogObserver(e.logger)
	}
	return e
}

// Stats is a point-in-time view of the Engine's shared state.
type Stats struct {
	InFlight    int      `json:"in_flight"`
	Capacity    int      `json:"capacity"`
	ActiveHosts []string `json:"active_hosts"`
}

// Stats reports slot usage and the hosts currently serialized.
func (e *Engine) Stats() Stats {
	return Stats{
		InFlight:    e.gate.InFlight(),
		Capacity:    e.gate.Capacity(),
		ActiveHosts: e.hosts.Active(),
	}
}

// Fetch executes job and attaches a fresh Response to it. It never fails:
// transport faults, timeouts, unsupported methods, empty bodies and missing
// JSON are all captured in the Response. On return job.Processed() is true.
func (e *Engine) Fetch(ctx context.Context, job *Job) *Job {
	if job == nil {
		return nil
	}
	e.observer.FetchStarted(job)

	resp := &Response{}
	started := e.execute(ctx, job, resp)
	if !started.IsZero() {
		resp.Elapsed = time.Since(started)
	}
	job.complete(resp)

	if resp.IsSuccessful {
		e.observer.FetchSucceeded(job, resp.Elapsed)
	} else {
		e.observer.FetchFailed(job, resp)
	}
	return job
}

// FetchAll fetches every job concurrently and returns once all have completed.
// Concurrency is still bounded by the Engine's gate.
func (e *Engine) FetchAll(ctx context.Context, jobs []*Job) []*Job {
	var g errgroup.Group
	for _, job := range jobs {
		if job == nil {
			continue
		}
		g.Go(func() error {
			e.Fetch(ctx, job)
			return nil
		})
	}
	_ = g.Wait() // Fetch never returns errors
	return jobs
}

// execute holds a gate slot, and the host lock when requested, for the
// duration of the dispatch. It returns the time dispatch started, or the zero
// time if the job never got that far.
func (e *Engine) execute(ctx context.Context, job *Job, resp *Response) (started time.Time) {
	if err := e.gate.Acquire(ctx); err != nil {
		e.captureFault(ctx, resp, err)
		return time.Time{}
	}
	defer e.gate.Release()

	if job.WaitForSameHost() {
		release, err := e.hosts.Acquire(ctx, job.Host())
		if err != nil {
			e.captureFault(ctx, resp, err)
			return time.Time{}
		}
		defer release()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fetch panicked", zap.String("job_id", job.ID()), zap.Any("panic", r))
			resp.IsSuccessful = false
			resp.Cause = fmt.Errorf("fetch panicked: %v", r)
		}
	}()

	started = time.Now()
	e.dispatch(ctx, job, resp)
	return started
}

func (e *Engine) dispatch(ctx context.Context, job *Job, resp *Response) {
	switch job.Method() {
	case http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		resp.Cause = fmt.Errorf("%w %q", ErrUnsupportedMethod, job.Method())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeoutFor(job))
	defer cancel()

	req, err := e.newRequest(ctx, job)
	if err != nil {
		e.captureFault(ctx, resp, err)
		return
	}

	httpResp, err := e.client.Do(req)
	if err != nil {
		e.captureFault(ctx, resp, err)
		return
	}
	defer func() {
		if cerr := httpResp.Body.Close(); cerr != nil {
			e.logger.Debug("close response body", zap.String("job_id", job.ID()), zap.Error(cerr))
		}
	}()

	resp.HTTPResponse = httpResp
	resp.StatusCode = httpResp.StatusCode
	resp.Reason = reasonPhrase(httpResp)
	resp.Header = httpResp.Header.Clone()
	resp.IsSuccessStatusCode = httpResp.StatusCode >= 200 && httpResp.StatusCode < 300

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		e.captureFault(ctx, resp, fmt.Errorf("read response body: %w", err))
		return
	}
	resp.Raw = string(body)
	classify(job, resp)
}

// newRequest builds a request carrying all of the job's headers. Nothing is
// written to shared client state, so concurrent fetches cannot see each
// other's headers.
func (e *Engine) newRequest(ctx context.Context, job *Job) (*http.Request, error) {
	var body io.Reader
	if job.Method() != http.MethodGet && len(job.body) > 0 {
		body = bytes.NewReader(job.body)
	}
	req, err := http.NewRequestWithContext(ctx, job.Method(), job.url.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if auth := job.Auth(); auth != nil {
		req.Header.Set("Authorization", auth.String())
	}
	for _, h := range job.headers {
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}
	if job.Method() != http.MethodGet {
		req.Header.Add("Accept", "application/json")
		if ct := job.ContentType(); ct != "" && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", ct)
		}
	}
	if e.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	return req, nil
}

func (e *Engine) timeoutFor(job *Job) time.Duration {
	if job.timeout > 0 {
		return job.timeout
	}
	return e.defaultTimeout
}

// captureFault records the deepest cause of err and whether a deadline fired.
func (e *Engine) captureFault(ctx context.Context, resp *Response, err error) {
	resp.IsSuccessful = false
	resp.Cause = rootCause(err)
	resp.TimedOut = errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		isTimeout(err)
}

func classify(job *Job, resp *Response) {
	switch {
	case !resp.IsSuccessStatusCode:
		resp.IsSuccessful = false
	case resp.Raw == "":
		resp.IsSuccessful = false
		resp.Cause = ErrEmptyResponse
	case job.ExpectJSON():
		if _, ok := resp.Payload(); !ok {
			resp.IsSuccessful = false
			resp.Cause = ErrNoJSON
			return
		}
		resp.IsSuccessful = true
	default:
		resp.IsSuccessful = true
	}
}

func reasonPhrase(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
