// Package requestid propagates a per-request id through X-Request-ID, the
// request context and structured logs.
package requestid
