package fetcher

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Response is the normalized outcome of one fetch attempt. The Engine fills
// every field before attaching it to the Job; afterwards only the payload
// cache changes.
type Response struct {
	// Raw is the full response body as text.
	Raw string
	// StatusCode is zero when no HTTP response was received.
	StatusCode int
	// Reason is the status reason phrase, e.g. "Not Found".
	Reason string
	// Header holds the response headers.
	Header http.Header
	// IsSuccessStatusCode is true for 2xx responses.
	IsSuccessStatusCode bool
	// IsSuccessful is true for a 2xx response with a non-empty body that
	// parses as JSON when JSON was expected.
	IsSuccessful bool
	// Cause is the captured failure, if any.
	Cause error
	// TimedOut is set when the job's timeout fired during dispatch.
	TimedOut bool
	// Elapsed covers request dispatch through body read.
	Elapsed time.Duration
	// HTTPResponse is the underlying response; its body is already drained and closed.
	HTTPResponse *http.Response

	payloadOnce sync.Once
	payload     any
	payloadOK   bool
}

// HasStatusCode reports whether an HTTP status was received.
func (r *Response) HasStatusCode() bool {
	return r.StatusCode != 0
}

// ElapsedMilliseconds returns Elapsed in whole milliseconds.
func (r *Response) ElapsedMilliseconds() int64 {
	return r.Elapsed.Milliseconds()
}

// Payload parses Raw as JSON on first use and caches the result. It returns
// false when the status was not 2xx or the body is not valid JSON.
func (r *Response) Payload() (any, bool) {
	r.payloadOnce.Do(func() {
		if !r.IsSuccessStatusCode {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(r.Raw), &v); err != nil {
			return
		}
		r.payload = v
		r.payloadOK = true
	})
	return r.payload, r.payloadOK
}

// Decode unmarshals Raw into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal([]byte(r.Raw), v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// ErrorMessage describes why the fetch failed, or returns "" on success.
func (r *Response) ErrorMessage() string {
	if r.Cause != nil {
		return r.Cause.Error()
	}
	if r.IsSuccessful {
		return ""
	}
	if !r.HasStatusCode() {
		return "no response"
	}
	return http.StatusText(r.StatusCode) + "(" + strconv.Itoa(r.StatusCode) + ")"
}

// Err returns the captured failure for callers that prefer error handling
// over inspecting flags. Non-2xx responses without a transport failure
// return nil; check IsSuccessful for those.
func (r *Response) Err() error {
	if r.IsSuccessful || r.Cause == nil {
		return nil
	}
	return r.Cause
}
