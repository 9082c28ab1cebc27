package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/fetcher/internal/fetcher"
)

type fetchOptions struct {
	method      string
	data        string
	contentType string
	headers     []string
	timeout     time.Duration
	expectJSON  bool
	sameHost    bool
	bearer      string
	includeBody bool
}

// newFetchCmd creates the 'fetch' subcommand, which runs one job per URL
// argument and prints one JSON result per line in argument order.
func newFetchCmd() *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: "Fetch one or more URLs",
		Long: `Fetches every URL concurrently through the engine and prints a JSON
result line for each. Results are also delivered to the configured sink.
The command fails if any fetch was unsuccessful.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.method, "method", "X", "GET", "HTTP method (GET, POST or PUT)")
	f.StringVarP(&opts.data, "data", "d", "", "request body for POST and PUT")
	f.StringVar(&opts.contentType, "content-type", "application/json", "content type of --data")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, `custom header as "Name: value" (repeatable)`)
	f.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (default from config)")
	f.BoolVar(&opts.expectJSON, "expect-json", true, "treat a non-JSON body as a failure")
	f.BoolVar(&opts.sameHost, "same-host", false, "serialize requests to the same host")
	f.StringVar(&opts.bearer, "bearer", "", "bearer token for the Authorization header")
	f.BoolVar(&opts.includeBody, "body", false, "include raw response bodies in the output")

	return cmd
}

func runFetch(cmd *cobra.Command, urls []string, opts *fetchOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	jobOpts, err := opts.jobOptions()
	if err != nil {
		return err
	}
	jobs := make([]*fetcher.Job, 0, len(urls))
	for _, u := range urls {
		job, err := fetcher.NewJob(u, jobOpts...)
		if err != nil {
			return fmt.Errorf("build job for %q: %w", u, err)
		}
		jobs = append(jobs, job)
	}

	appInstance.GetEngine().FetchAll(cmd.Context(), jobs)

	enc := json.NewEncoder(cmd.OutOrStdout())
	results := make([]fetcher.Result, 0, len(jobs))
	failed := 0
	for _, job := range jobs {
		res := fetcher.NewResult(job, opts.includeBody)
		if !res.Successful {
			failed++
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		results = append(results, res)
	}
	if err := appInstance.GetSink().Write(cmd.Context(), results); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, len(jobs))
	}
	return nil
}

func (o *fetchOptions) jobOptions() ([]fetcher.JobOption, error) {
	jobOpts := []fetcher.JobOption{
		fetcher.WithMethod(o.method),
		fetcher.WithExpectJSON(o.expectJSON),
		fetcher.WithWaitForSameHost(o.sameHost),
		fetcher.WithTimeout(o.timeout),
	}
	if o.data != "" {
		jobOpts = append(jobOpts, fetcher.WithBody([]byte(o.data), o.contentType))
	}
	if o.bearer != "" {
		jobOpts = append(jobOpts, fetcher.WithAuth(fetcher.BearerToken(o.bearer)))
	}
	for _, raw := range o.headers {
		name, value, err := parseHeader(raw)
		if err != nil {
			return nil, err
		}
		jobOpts = append(jobOpts, fetcher.WithHeader(name, value))
	}
	return jobOpts, nil
}

func parseHeader(raw string) (string, string, error) {
	name, value, ok := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q: want \"Name: value\"", raw)
	}
	return name, strings.TrimSpace(value), nil
}
