package goSession

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/revocation"
)

var (
	// ErrMalformedToken is returned when a token cannot be split or decoded.
	ErrMalformedToken = jwt.ErrMalformedToken
	// ErrBadSignature is returned when a token was not signed by this server.
	ErrBadSignature = jwt.ErrBadSignature
	// ErrExpired is returned when the validator clock is at or past the token expiry.
	ErrExpired = errors.New("token expired")
	// ErrTokenClockSkew is returned when a token claims to be issued in the future.
	ErrTokenClockSkew = errors.New("token clock skew exceeded")
	// ErrWrongType is returned when an access token is used as a refresh token or vice versa.
	ErrWrongType = errors.New("wrong token type")
	// ErrRevoked is returned when a refresh token or its chain has been revoked or consumed.
	ErrRevoked = errors.New("token revoked")
	// ErrStoreUnavailable is returned when the revocation store cannot be reached.
	ErrStoreUnavailable = revocation.ErrStoreUnavailable
	// ErrInvalidCredentials is returned by credential verifiers on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSubject is returned when a token would be issued for an empty subject.
	ErrInvalidSubject = errors.New("invalid subject")
	// ErrEngineNotReady is returned when an Engine method is called on a nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Wire error codes carried in HTTP error bodies.
const (
	CodeMalformed          = "malformed"
	CodeBadSignature       = "bad_signature"
	CodeExpired            = "expired"
	CodeClockSkew          = "clock_skew"
	CodeWrongType          = "wrong_type"
	CodeRevoked            = "revoked"
	CodeStoreUnavailable   = "store_unavailable"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInternal           = "internal_error"
)

// StatusCode maps an engine error to the HTTP status a server should answer with.
// A nil error maps to 200.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMalformedToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrBadSignature),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrTokenClockSkew),
		errors.Is(err, ErrWrongType),
		errors.Is(err, ErrRevoked),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the machine-readable reason for err. Clients use it to tell
// an expired token (refresh and retry) from a revoked one (log in again).
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStoreUnavailable
	case errors.Is(err, ErrMalformedToken):
		return CodeMalformed
	case errors.Is(err, ErrBadSignature):
		return CodeBadSignature
	case errors.Is(err, ErrExpired):
		return CodeExpired
	case errors.Is(err, ErrTokenClockSkew):
		return CodeClockSkew
	case errors.Is(err, ErrWrongType):
		return CodeWrongType
	case errors.Is(err, ErrRevoked):
		return CodeRevoked
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	default:
		return CodeInternal
	}
}
