package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/revocation"
)

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureValidate
	LogoutFailureStore
)

// LogoutResult reports the outcome of a logout. AlreadyEnded is set when the
// presented token was already revoked or expired, which is still a success.
type LogoutResult struct {
	Failure         LogoutFailureKind
	ValidateFailure ValidateFailureKind
	Err             error
	Claims          *jwt.Claims
	AlreadyEnded    bool
}

// LogoutStore is the write side of the revocation store used by logout.
type LogoutStore interface {
	Revoke(ctx context.Context, id string, exp time.Time) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Validate       func(context.Context, string) ValidateResult
	Store          LogoutStore
	ChainRetention time.Duration
	Now            func() time.Time
}

// RunLogout revokes the presented refresh token and its chain. Logging out
// twice, or with an expired token, succeeds.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	v := deps.Validate(ctx, refreshToken)
	res := LogoutResult{ValidateFailure: v.Failure, Claims: v.Claims}
	switch v.Failure {
	case ValidateFailureNone:
	case ValidateFailureRevoked, ValidateFailureExpired:
		res.AlreadyEnded = true
	case ValidateFailureStore:
		res.Failure = LogoutFailureStore
		res.Err = v.Err
		return res
	default:
		res.Failure = LogoutFailureValidate
		res.Err = v.Err
		return res
	}

	claims := v.Claims
	if err := deps.Store.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		res.Failure = LogoutFailureStore
		res.Err = err
		return res
	}
	if err := deps.Store.Revoke(ctx, revocation.ChainKey(claims.ChainID), deps.Now().Add(deps.ChainRetention)); err != nil {
		res.Failure = LogoutFailureStore
		res.Err = err
		return res
	}
	return res
}
