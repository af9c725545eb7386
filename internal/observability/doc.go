// Package observability builds the zap loggers and Prometheus collectors
// used by the API server, the queue consumer and the CLI.
package observability
