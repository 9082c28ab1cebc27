package fetcher

import (
	"encoding/json"
	"time"
)

// Result is a JSON-friendly snapshot of a completed job.
type Result struct {
	JobID        string          `json:"job_id"`
	Method       string          `json:"method"`
	URL          string          `json:"url"`
	Processed    bool            `json:"processed"`
	Successful   bool            `json:"successful"`
	StatusCode   int             `json:"status_code,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	ElapsedMs    int64           `json:"elapsed_ms"`
	TimedOut     bool            `json:"timed_out,omitempty"`
	Error        string          `json:"error,omitempty"`
	Body         string          `json:"body,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ResponseSize int             `json:"response_size"`
}

// NewResult snapshots job. Raw bodies are included only when includeBody is set;
// parsed JSON payloads are always included.
func NewResult(job *Job, includeBody bool) Result {
	res := Result{
		JobID:     job.ID(),
		Method:    job.Method(),
		URL:       job.URL().Redacted(),
		Processed: job.Processed(),
		CreatedAt: job.Created(),
	}
	resp := job.Response()
	if resp == nil {
		return res
	}
	res.Successful = resp.IsSuccessful
	res.StatusCode = resp.StatusCode
	res.Reason = resp.Reason
	res.ElapsedMs = resp.ElapsedMilliseconds()
	res.TimedOut = resp.TimedOut
	res.Error = resp.ErrorMessage()
	res.ResponseSize = len(resp.Raw)
	if _, ok := resp.Payload(); ok {
		res.Payload = json.RawMessage(resp.Raw)
	}
	if includeBody {
		res.Body = resp.Raw
	}
	return res
}
