// Package handlers serves the converter daemon's operational endpoints:
// health and readiness probes, build information, Prometheus metrics, and a
// small control surface for requesting an early scan or a reconciliation
// pass.
package handlers
