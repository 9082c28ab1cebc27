package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

// maxTimeoutMs caps per-job timeouts accepted over the API at one hour.
const maxTimeoutMs = int64(time.Hour / time.Millisecond)

type fetchRequest struct {
	Jobs        []jobRequest `json:"jobs"`
	IncludeBody bool         `json:"include_body"`
}

type jobRequest struct {
	URL             string          `json:"url"`
	Method          string          `json:"method"`
	Body            string          `json:"body"`
	ContentType     string          `json:"content_type"`
	Headers         []headerRequest `json:"headers"`
	TimeoutMs       int64           `json:"timeout_ms"`
	ExpectJSON      *bool           `json:"expect_json"`
	WaitForSameHost bool            `json:"wait_for_same_host"`
	Auth            *authRequest    `json:"auth"`
}

type headerRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type authRequest struct {
	Scheme    string `json:"scheme"`
	Parameter string `json:"parameter"`
}

type fetchResponse struct {
	Results []fetcher.Result `json:"results"`
}

func (r fetchRequest) toJobs(maxJobs int) ([]*fetcher.Job, error) {
	if len(r.Jobs) == 0 {
		return nil, errors.New("jobs required")
	}
	if len(r.Jobs) > maxJobs {
		return nil, fmt.Errorf("at most %d jobs per request", maxJobs)
	}
	jobs := make([]*fetcher.Job, 0, len(r.Jobs))
	for i, jr := range r.Jobs {
		job, err := jr.toJob()
		if err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (jr jobRequest) toJob() (*fetcher.Job, error) {
	if jr.TimeoutMs < 0 || jr.TimeoutMs > maxTimeoutMs {
		return nil, fmt.Errorf("timeout_ms must be between 0 and %d", maxTimeoutMs)
	}
	opts := []fetcher.JobOption{
		fetcher.WithWaitForSameHost(jr.WaitForSameHost),
	}
	if jr.Method != "" {
		opts = append(opts, fetcher.WithMethod(jr.Method))
	}
	if jr.Body != "" {
		opts = append(opts, fetcher.WithBody([]byte(jr.Body), jr.ContentType))
	}
	if jr.TimeoutMs > 0 {
		opts = append(opts, fetcher.WithTimeout(time.Duration(jr.TimeoutMs)*time.Millisecond))
	}
	if jr.ExpectJSON != nil {
		opts = append(opts, fetcher.WithExpectJSON(*jr.ExpectJSON))
	}
	if jr.Auth != nil {
		if jr.Auth.Scheme == "" {
			return nil, errors.New("auth.scheme required")
		}
		opts = append(opts, fetcher.WithAuth(&fetcher.Credential{
			Scheme:    jr.Auth.Scheme,
			Parameter: jr.Auth.Parameter,
		}))
	}
	for _, h := range jr.Headers {
		if h.Name == "" {
			return nil, errors.New("header name required")
		}
		opts = append(opts, fetcher.WithHeader(h.Name, h.Value))
	}
	job, err := fetcher.NewJob(jr.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("new job: %w", err)
	}
	return job, nil
}
