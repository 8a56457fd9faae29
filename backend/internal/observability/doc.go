// Package observability provides structured logging and Prometheus metrics
// for the admin API.
//
// This package implements:
//   - zap logger construction from configuration
//   - request-scoped loggers carrying the request ID
//   - HTTP, authentication and moderation metrics on a private registry
package observability
