package fetcher

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout applies to jobs created without an explicit timeout.
const DefaultTimeout = 15 * time.Second

// Credential is the value placed in the Authorization header.
type Credential struct {
	Scheme    string
	Parameter string
}

// BearerToken builds a Bearer credential.
func BearerToken(token string) *Credential {
	return &Credential{Scheme: "Bearer", Parameter: token}
}

// String renders the credential as an Authorization header value.
func (c Credential) String() string {
	if c.Parameter == "" {
		return c.Scheme
	}
	return c.Scheme + " " + c.Parameter
}

// Header is a single custom request header.
type Header struct {
	Name  string
	Value string
}

// Job describes one HTTP request plus the state the Engine writes when the
// fetch completes. Identity fields are fixed by NewJob.
type Job struct {
	id          string
	created     time.Time
	url         *url.URL
	method      string
	body        []byte
	contentType string
	auth        *Credential
	headers     []Header
	timeout     time.Duration
	expectJSON  bool
	waitForHost bool

	mu        sync.RWMutex
	processed bool
	response  *Response
}

// JobOption customizes a Job at construction time.
type JobOption func(*Job)

// WithTimeout sets the per-fetch timeout. Zero or negative keeps DefaultTimeout.
func WithTimeout(d time.Duration) JobOption {
	return func(j *Job) {
		j.timeout = d
	}
}

// WithAuth sets the Authorization credential.
func WithAuth(c *Credential) JobOption {
	return func(j *Job) {
		j.auth = c
	}
}

// WithExpectJSON controls whether a non-JSON body is treated as a failure.
func WithExpectJSON(expect bool) JobOption {
	return func(j *Job) {
		j.expectJSON = expect
	}
}

// WithMethod sets the HTTP method. Only GET, POST and PUT can be dispatched;
// anything else completes with ErrUnsupportedMethod.
func WithMethod(method string) JobOption {
	return func(j *Job) {
		j.method = strings.ToUpper(strings.TrimSpace(method))
	}
}

// WithBody sets the request body sent with POST and PUT.
func WithBody(body []byte, contentType string) JobOption {
	return func(j *Job) {
		j.body = append([]byte(nil), body...)
		j.contentType = contentType
	}
}

// WithHeader appends a custom header. Headers are sent in the order added.
func WithHeader(name, value string) JobOption {
	return func(j *Job) {
		j.headers = append(j.headers, Header{Name: name, Value: value})
	}
}

// WithWaitForSameHost requests that no other serialized job for the same host
// runs concurrently with this one.
func WithWaitForSameHost(wait bool) JobOption {
	return func(j *Job) {
		j.waitForHost = wait
	}
}

// NewJob parses rawURL once and applies opts.
func NewJob(rawURL string, opts ...JobOption) (*Job, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if parsed.Scheme == "" || parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q needs a scheme and host", ErrInvalidURL, rawURL)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	j := &Job{
		id:         id.String(),
		created:    time.Now().UTC(),
		url:        parsed,
		method:     http.MethodGet,
		expectJSON: true,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// ID uniquely identifies the job for logging.
func (j *Job) ID() string { return j.id }

// Created is the construction timestamp in UTC.
func (j *Job) Created() time.Time { return j.created }

// URL returns a copy of the target URL.
func (j *Job) URL() *url.URL {
	u := *j.url
	return &u
}

// Host is the lower-cased hostname used for host serialization. Ports are ignored.
func (j *Job) Host() string { return strings.ToLower(j.url.Hostname()) }

// Method returns the HTTP method.
func (j *Job) Method() string { return j.method }

// Body returns a copy of the request body.
func (j *Job) Body() []byte { return bytes.Clone(j.body) }

// ContentType returns the request body content type.
func (j *Job) ContentType() string { return j.contentType }

// Auth returns the Authorization credential, if any.
func (j *Job) Auth() *Credential { return j.auth }

// Headers returns the custom headers in insertion order.
func (j *Job) Headers() []Header {
	return append([]Header(nil), j.headers...)
}

// Timeout returns the effective per-fetch timeout.
func (j *Job) Timeout() time.Duration {
	if j.timeout <= 0 {
		return DefaultTimeout
	}
	return j.timeout
}

// ExpectJSON reports whether the body must parse as JSON.
func (j *Job) ExpectJSON() bool { return j.expectJSON }

// WaitForSameHost reports whether the job takes part in host serialization.
func (j *Job) WaitForSameHost() bool { return j.waitForHost }

// Processed reports whether a fetch attempt has completed.
func (j *Job) Processed() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.processed
}

// Response returns the outcome of the last fetch attempt, or nil.
func (j *Job) Response() *Response {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.response
}

// ClearResponse resets the completion state so the job can be fetched again.
func (j *Job) ClearResponse() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processed = false
	j.response = nil
}

func (j *Job) complete(resp *Response) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processed = true
	j.response = resp
}

// String identifies the job in logs.
func (j *Job) String() string {
	return j.method + " " + j.url.String()
}
