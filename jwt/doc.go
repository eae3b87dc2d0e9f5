// Package jwt encodes and decodes session tokens (access and refresh) as signed JWTs
// using HS256 or Ed25519 keys, with optional kid-based key rotation.
//
// Decode verifies the signature over the raw segments before interpreting any claim
// and never judges expiry: time-based checks belong to the caller's clock.
package jwt
