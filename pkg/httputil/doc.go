// Package httputil provides shared HTTP plumbing for registry clients.
//
// The package is intentionally small: transient-failure classification via
// [RetryableError] and exponential-backoff execution via [Retry]. Registry
// clients wrap network errors and 5xx responses as retryable; 404s and
// malformed bodies are not retried.
package httputil
