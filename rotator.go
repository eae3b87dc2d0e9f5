package goSession

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/revocation"
)

// RotatorConfig holds rotation policy.
type RotatorConfig struct {
	RevokeOnChainReuse bool
	// RefreshTTL bounds how long a chain revocation entry is kept.
	RefreshTTL time.Duration
	Logger     *slog.Logger
}

// RotateResult describes one rotation attempt in detail.
type RotateResult struct {
	Pair          TokenPair
	Claims        *Claims
	ReuseDetected bool
	ChainRevoked  bool
	Err           error
}

// LogoutResult describes one logout attempt.
type LogoutResult struct {
	Claims       *Claims
	AlreadyEnded bool
	Err          error
}

// Rotator exchanges refresh tokens for new pairs and ends sessions.
type Rotator struct {
	validator *Validator
	issuer    *Issuer
	store     revocation.Store
	cfg       RotatorConfig
	clock     Clock
}

// NewRotator wires a Rotator. store must be the same store validator reads.
func NewRotator(validator *Validator, issuer *Issuer, store revocation.Store, cfg RotatorConfig, clock Clock) *Rotator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Rotator{
		validator: validator,
		issuer:    issuer,
		store:     store,
		cfg:       cfg,
		clock:     clock,
	}
}

// Rotate consumes refresh and returns a new pair in the same chain.
//
// Of any number of concurrent calls with the same token at most one
// succeeds; the rest get ErrRevoked. A store failure yields
// ErrStoreUnavailable and leaves the token unconsumed.
func (r *Rotator) Rotate(ctx context.Context, refresh string) (TokenPair, error) {
	res := r.RotateWithResult(ctx, refresh)
	return res.Pair, res.Err
}

// RotateWithResult is Rotate with reuse details.
func (r *Rotator) RotateWithResult(ctx context.Context, refresh string) RotateResult {
	res := flows.RunRotate(ctx, refresh, flows.RotateDeps{
		Validate:           r.validator.refresh,
		Mint:               r.issuer.IssueInChain,
		Store:              r.store,
		RevokeOnChainReuse: r.cfg.RevokeOnChainReuse,
		ChainRetention:     r.cfg.RefreshTTL,
		Now:                r.clock.now,
		Warn: func(msg string, args ...any) {
			r.cfg.Logger.WarnContext(ctx, msg, args...)
		},
	})

	out := RotateResult{
		Claims:        res.Claims,
		ReuseDetected: res.ReuseDetected,
		ChainRevoked:  res.ChainRevoked,
	}
	switch res.Failure {
	case flows.RotateFailureNone:
		out.Pair = res.Pair
	case flows.RotateFailureValidate:
		out.Err = validateFailureError(res.ValidateFailure, res.Err)
	case flows.RotateFailureReuse:
		out.Err = ErrRevoked
	case flows.RotateFailureStore:
		out.Err = storeError(res.Err)
	case flows.RotateFailureMint:
		out.Err = fmt.Errorf("mint replacement pair: %w", res.Err)
	default:
		out.Err = fmt.Errorf("unknown rotation failure %d", res.Failure)
	}
	return out
}

// Logout revokes refresh and its chain. An already revoked or expired
// token is a success. Access tokens already handed out stay valid until
// they expire.
func (r *Rotator) Logout(ctx context.Context, refresh string) error {
	return r.LogoutWithResult(ctx, refresh).Err
}

// LogoutWithResult is Logout with details.
func (r *Rotator) LogoutWithResult(ctx context.Context, refresh string) LogoutResult {
	res := flows.RunLogout(ctx, refresh, flows.LogoutDeps{
		Validate:       r.validator.refresh,
		Store:          r.store,
		ChainRetention: r.cfg.RefreshTTL,
		Now:            r.clock.now,
	})

	out := LogoutResult{Claims: res.Claims, AlreadyEnded: res.AlreadyEnded}
	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureValidate:
		out.Err = validateFailureError(res.ValidateFailure, res.Err)
	case flows.LogoutFailureStore:
		out.Err = storeError(res.Err)
	default:
		out.Err = fmt.Errorf("unknown logout failure %d", res.Failure)
	}
	return out
}
