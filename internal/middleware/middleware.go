// Package middleware holds the echo middleware: JWT cookie authentication,
// request ids and request-scoped loggers, New Relic tracing, CORS, per-IP
// rate limiting and the global error handler.
package middleware
