package test

import (
	"context"
	"net/http"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/revocation"
)

// This test guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goSession.New

	var _ *goSession.Engine
	var _ goSession.Config
	var _ goSession.TokenPair
	var _ goSession.Claims
	var _ goSession.AuditSink
	var _ goSession.Clock
	var _ revocation.Store = (*revocation.MemoryStore)(nil)
	var _ revocation.Store = (*revocation.RedisStore)(nil)
	var _ revocation.Store = (*revocation.PostgresStore)(nil)

	var _ error = goSession.ErrMalformedToken
	var _ error = goSession.ErrBadSignature
	var _ error = goSession.ErrExpired
	var _ error = goSession.ErrTokenClockSkew
	var _ error = goSession.ErrWrongType
	var _ error = goSession.ErrRevoked
	var _ error = goSession.ErrStoreUnavailable
	var _ error = goSession.ErrInvalidCredentials

	var _ func(middleware.AccessValidator) func(http.Handler) http.Handler = middleware.Guard
	var _ middleware.AccessValidator = (*goSession.Engine)(nil)

	var _ func(*goSession.Engine, context.Context, string) (goSession.TokenPair, error) = (*goSession.Engine).Login
	var _ func(*goSession.Engine, context.Context, string) (goSession.TokenPair, error) = (*goSession.Engine).Refresh
	var _ func(*goSession.Engine, context.Context, string) error = (*goSession.Engine).Logout
	var _ func(*goSession.Engine, context.Context, string) (*goSession.Claims, error) = (*goSession.Engine).ValidateAccess
	var _ func(error) int = goSession.StatusCode
	var _ func(error) string = goSession.ErrorCode
}
