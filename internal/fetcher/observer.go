package fetcher

import (
	"time"

	"go.uber.org/zap"
)

// Observer receives fetch lifecycle events. Every FetchStarted is followed by
// exactly one FetchSucceeded or FetchFailed for the same job.
type Observer interface {
	FetchStarted(job *Job)
	FetchSucceeded(job *Job, elapsed time.Duration)
	FetchFailed(job *Job, resp *Response)
}

// NopObserver discards all events.
type NopObserver struct{}

// FetchStarted implements Observer.
func (NopObserver) FetchStarted(*Job) {}

// FetchSucceeded implements Observer.
func (NopObserver) FetchSucceeded(*Job, time.Duration) {}

// FetchFailed implements Observer.
func (NopObserver) FetchFailed(*Job, *Response) {}

// Observers fans events out to each member in order.
type Observers []Observer

// FetchStarted implements Observer.
func (o Observers) FetchStarted(job *Job) {
	for _, obs := range o {
		obs.FetchStarted(job)
	}
}

// FetchSucceeded implements Observer.
func (o Observers) FetchSucceeded(job *Job, elapsed time.Duration) {
	for _, obs := range o {
		obs.FetchSucceeded(job, elapsed)
	}
}

// FetchFailed implements Observer.
func (o Observers) FetchFailed(job *Job, resp *Response) {
	for _, obs := range o {
		obs.FetchFailed(job, resp)
	}
}

// LogObserver writes fetch events to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver builds a LogObserver. A nil logger discards output.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

// FetchStarted implements Observer.
func (o *LogObserver) FetchStarted(job *Job) {
	o.logger.Debug("fetch started", jobFields(job)...)
}

// FetchSucceeded implements Observer.
func (o *LogObserver) FetchSucceeded(job *Job, elapsed time.Duration) {
	o.logger.Debug("fetch succeeded", append(jobFields(job), zap.Duration("duration", elapsed))...)
}

// FetchFailed implements Observer.
func (o *LogObserver) FetchFailed(job *Job, resp *Response) {
	fields := append(jobFields(job),
		zap.Duration("duration", resp.Elapsed),
		zap.String("error", resp.ErrorMessage()),
	)
	if resp.HasStatusCode() {
		fields = append(fields, zap.Int("status", resp.StatusCode))
	}
	o.logger.Warn("fetch failed", fields...)
}

func jobFields(job *Job) []zap.Field {
	return []zap.Field{
		zap.String("job_id", job.ID()),
		zap.String("method", job.Method()),
		zap.String("host", job.Host()),
		zap.String("url", job.URL().Redacted()),
	}
}
