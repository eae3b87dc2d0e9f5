package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn is returned when an operation needs a token pair and
	// none is held.
	ErrNotLoggedIn = errors.New("client: not logged in")
	// ErrUnauthenticated means the server rejected the credentials or the
	// refresh token. The local session has been cleared.
	ErrUnauthenticated = errors.New("client: unauthenticated")
	// ErrRefreshUnavailable means the refresh could not complete for
	// transport reasons. The current pair is kept.
	ErrRefreshUnavailable = errors.New("client: refresh unavailable")
	// ErrAuthUnavailable means a login or logout call could not reach a
	// healthy auth server.
	ErrAuthUnavailable = errors.New("client: auth server unavailable")
)

// ServerError is an error envelope returned by the auth server.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("auth server returned %d", e.Status)
	}
	return fmt.Sprintf("auth server returned %d %s: %s", e.Status, e.Code, e.Message)
}
