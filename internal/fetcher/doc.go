// Package fetcher executes HTTP requests under a process-wide concurrency cap,
// optionally serializing requests that target the same host, and normalizes
// every outcome into a Response attached to the originating Job.
//
// A single Engine owns the admission gate and the host lock registry; callers
// share that Engine instead of relying on package-level state.
package fetcher
