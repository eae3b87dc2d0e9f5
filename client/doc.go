// Package client holds a session on behalf of an application talking to a
// goSession server.
//
// [Client] logs in, attaches the access token to outgoing requests and, when
// a request comes back 401, refreshes the pair once and retries. Concurrent
// 401s share a single refresh. A refresh rejected by the server ends the
// session locally; a refresh that fails for transport reasons keeps the
// current pair so the caller can retry later.
//
// Calls to the auth endpoints pass through a circuit breaker, and the pair is
// persisted through a [TokenStore].
package client
