// Package internal holds helpers that are private to goSession.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - flows — pure-function orchestrators for issue, validate, rotate and logout
//   - config — environment configuration for cmd/sessiond
//   - logging — slog construction shared by the binaries
package internal
