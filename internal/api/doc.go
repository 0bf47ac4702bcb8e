// Package api hosts the HTTP server, middleware, and REST handlers for the
// venue scraper worker. Notable routes:
//   - GET / and GET /health for service info and configuration health.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /scrape-venue to queue an existing task for processing.
//   - GET /tasks/{task_id} and POST /tasks/{task_id}/cancel for operators.
package api
