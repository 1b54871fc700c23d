// Package middleware provides HTTP middleware for the ops listener.
//
// It includes:
//   - Structured access logging through the application logger
//   - Prometheus request metrics labelled by route template
package middleware
