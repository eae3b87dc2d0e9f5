package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType = jwt.TokenType

const (
	// TokenAccess is the short-lived bearer credential.
	TokenAccess = jwt.TokenAccess
	// TokenRefresh is the long-lived, single-use rotation credential.
	TokenRefresh = jwt.TokenRefresh
)

// Claims is the verified claim set of a session token.
type Claims = jwt.Claims

// TokenPair is what login and refresh hand back to a client. Both tokens
// share ChainID.
type TokenPair = flows.TokenPair

// Codec turns claim sets into signed token strings and back. [jwt.Manager]
// is the production implementation.
type Codec interface {
	Encode(c jwt.Claims) (string, error)
	Decode(token string) (*jwt.Claims, error)
}

// Clock returns the current time. Every expiry decision in the engine goes
// through one, so tests can drive time explicitly.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
