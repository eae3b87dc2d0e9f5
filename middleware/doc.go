// Package middleware adapts goSession access-token validation to net/http.
//
// [Guard] reads the Authorization header, validates the bearer token as an
// access token and injects the verified claims into the request context.
// Failures are answered with the status from goSession.StatusCode and an
// RFC 6750 WWW-Authenticate challenge.
//
// This package does not parse tokens itself and never touches the revocation
// store; access validation is stateless.
package middleware
