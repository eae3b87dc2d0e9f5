// Package goSession issues and rotates stateless session token pairs: a
// short-lived access JWT and a longer-lived refresh JWT that belong to a
// rotation chain.
//
// Access tokens are validated from their signature and claims alone. Refresh
// tokens are additionally checked against a revocation store, and each one can
// be exchanged exactly once. Presenting an already exchanged refresh token is
// reported as reuse and, when [SecurityConfig.RevokeOnChainReuse] is set, ends
// the whole chain.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config],
// [Issuer], [Validator], [Rotator] and value types ([TokenPair], [Claims],
// [MetricsSnapshot]). Flow orchestration and audit dispatch live under
// internal/. Token encoding lives in package jwt and revocation backends in
// package revocation.
//
// # Concurrency
//
// Engine methods are safe for concurrent use after [Builder.Build]. Rotation
// of a single refresh token has exactly one winner regardless of how many
// callers race on it; the revocation store's Consume provides that guarantee.
//
// # Error contract
//
// Every failure wraps one of the exported sentinels. [StatusCode] and
// [ErrorCode] map them to HTTP statuses and stable string codes. A revocation
// store failure is always [ErrStoreUnavailable] and never reads as revoked.
package goSession
