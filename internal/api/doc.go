// Package api hosts the HTTP server, middleware, and REST handlers that expose
// the fetch engine. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/fetch to run a batch of jobs and return their results.
//   - GET /v1/stats for gate and host-lock usage.
package api
