package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

// Observer records fetch lifecycle events as Prometheus metrics.
type Observer struct{}

// NewObserver initializes the collectors and returns an Observer.
func NewObserver() *Observer {
	Init()
	return &Observer{}
}

// FetchStarted implements fetcher.Observer.
func (*Observer) FetchStarted(*fetcher.Job) {
	IncPendingFetches()
}

// FetchSucceeded implements fetcher.Observer.
func (*Observer) FetchSucceeded(job *fetcher.Job, elapsed time.Duration) {
	DecPendingFetches()
	size := 0
	if resp := job.Response(); resp != nil {
		size = len(resp.Raw)
	}
	ObserveFetch(job.Host(), OutcomeSuccess, size, elapsed)
}

// FetchFailed implements fetcher.Observer.
func (*Observer) FetchFailed(job *fetcher.Job, resp *fetcher.Response) {
	DecPendingFetches()
	ObserveFetch(job.Host(), Outcome(resp), len(resp.Raw), resp.Elapsed)
}

// Outcome maps a response to its outcome label.
func Outcome(resp *fetcher.Response) string {
	switch {
	case resp.IsSuccessful:
		return OutcomeSuccess
	case resp.TimedOut || errors.Is(resp.Cause, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(resp.Cause, fetcher.ErrEmptyResponse):
		return OutcomeEmpty
	case errors.Is(resp.Cause, fetcher.ErrNoJSON):
		return OutcomeNoJSON
	case resp.HasStatusCode() && !resp.IsSuccessStatusCode:
		return OutcomeHTTPError
	default:
		return OutcomeError
	}
}
