package client

// State is the client's session state.
type State uint8

const (
	StateLoggedOut State = iota
	StateLoggingIn
	StateActive
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggingIn:
		return "logging_in"
	case StateActive:
		return "active"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}
