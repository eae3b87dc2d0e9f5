// Package httpapi serves the session endpoints over HTTP: login, refresh,
// logout, a protected /me sample and Prometheus metrics.
//
// Responses use a {"data": ...} or {"error": {"code", "message"}} envelope.
// Error codes are the goSession wire codes, so a client can tell an expired
// access token from a revoked refresh token or an unavailable store.
package httpapi
