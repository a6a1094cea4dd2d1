// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - POST /main runs a synchronous crawl and answers with a JSON array of
//     image URLs (CORS enabled for browser front ends).
//   - POST /v1/crawls and /v1/crawls/{job_id}/... submit, inspect and cancel
//     asynchronous crawl jobs.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
