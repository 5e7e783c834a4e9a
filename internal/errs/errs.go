// Package errs defines the error shapes the API returns.
//
// Handlers and services return *HTTPError values; the global error handler
// renders them as JSON so every failure reaches the client in one format.
package errs
