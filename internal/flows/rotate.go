package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/revocation"
)

// RotateFailureKind classifies rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureValidate
	RotateFailureMint
	RotateFailureReuse
	RotateFailureStore
)

// RotateResult carries either the new pair or failure metadata.
type RotateResult struct {
	Failure         RotateFailureKind
	ValidateFailure ValidateFailureKind
	Err             error
	Claims          *jwt.Claims
	Pair            TokenPair
	ReuseDetected   bool
	ChainRevoked    bool
}

// RotateStore is the write side of the revocation store used by rotation.
type RotateStore interface {
	Consume(ctx context.Context, id string, exp time.Time) (bool, error)
	Revoke(ctx context.Context, id string, exp time.Time) error
}

// RotateDeps captures refresh rotation dependencies.
type RotateDeps struct {
	Validate           func(context.Context, string) ValidateResult
	Mint               func(subject, chainID string) (TokenPair, error)
	Store              RotateStore
	RevokeOnChainReuse bool
	ChainRetention     time.Duration
	Now                func() time.Time
	Warn               func(string, ...any)
}

// RunRotate exchanges a refresh token for a new pair in the same chain. The
// presented token is consumed atomically, so of any number of concurrent
// callers holding the same token at most one receives a pair.
func RunRotate(ctx context.Context, refreshToken string, deps RotateDeps) RotateResult {
	v := deps.Validate(ctx, refreshToken)
	switch v.Failure {
	case ValidateFailureNone:
	case ValidateFailureRevoked:
		return reuse(ctx, v.Claims, deps)
	case ValidateFailureStore:
		return RotateResult{Failure: RotateFailureStore, ValidateFailure: v.Failure, Err: v.Err, Claims: v.Claims}
	default:
		return RotateResult{Failure: RotateFailureValidate, ValidateFailure: v.Failure, Err: v.Err, Claims: v.Claims}
	}

	claims := v.Claims
	pair, err := deps.Mint(claims.Subject, claims.ChainID)
	if err != nil {
		return RotateResult{Failure: RotateFailureMint, Err: err, Claims: claims}
	}

	won, err := deps.Store.Consume(ctx, claims.TokenID, claims.ExpiresAt)
	if err != nil {
		return RotateResult{Failure: RotateFailureStore, Err: err, Claims: claims}
	}
	if !won {
		return reuse(ctx, claims, deps)
	}

	return RotateResult{Claims: claims, Pair: pair}
}

func reuse(ctx context.Context, claims *jwt.Claims, deps RotateDeps) RotateResult {
	res := RotateResult{
		Failure:         RotateFailureReuse,
		ValidateFailure: ValidateFailureRevoked,
		Claims:          claims,
		ReuseDetected:   true,
	}
	if !deps.RevokeOnChainReuse || claims == nil {
		return res
	}

	exp := deps.Now().Add(deps.ChainRetention)
	if err := deps.Store.Revoke(ctx, revocation.ChainKey(claims.ChainID), exp); err != nil {
		if deps.Warn != nil {
			deps.Warn("goSession: chain revocation after reuse failed", "chain_id", claims.ChainID, "error", err)
		}
		return res
	}
	res.ChainRevoked = true
	return res
}
