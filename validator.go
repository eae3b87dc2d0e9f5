package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/revocation"
)

// Validator decides whether a presented token is currently acceptable.
//
// Validate returns the decoded claims together with ErrExpired,
// ErrTokenClockSkew, ErrWrongType and ErrRevoked, since those are only
// reported for tokens whose signature verified.
type Validator struct {
	deps flows.ValidateDeps
}

// NewValidator returns a Validator. maxSkew bounds how far in the future an
// issue time may lie; a negative value disables that check.
func NewValidator(codec Codec, store revocation.Store, clock Clock, maxSkew time.Duration) *Validator {
	return &Validator{
		deps: flows.ValidateDeps{
			Decode:       codec.Decode,
			Now:          clock.now,
			MaxClockSkew: maxSkew,
			Store:        store,
		},
	}
}

// Validate checks token as the expected type. Only refresh tokens consult
// the revocation store.
func (v *Validator) Validate(ctx context.Context, token string, expected TokenType) (*Claims, error) {
	res := v.run(ctx, token, expected)
	return res.Claims, validateFailureError(res.Failure, res.Err)
}

func (v *Validator) run(ctx context.Context, token string, expected TokenType) flows.ValidateResult {
	return flows.RunValidate(ctx, token, expected, v.deps)
}

func (v *Validator) refresh(ctx context.Context, token string) flows.ValidateResult {
	return v.run(ctx, token, TokenRefresh)
}

func validateFailureError(kind flows.ValidateFailureKind, err error) error {
	switch kind {
	case flows.ValidateFailureNone:
		return nil
	case flows.ValidateFailureDecode:
		if errors.Is(err, ErrMalformedToken) || errors.Is(err, ErrBadSignature) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case flows.ValidateFailureExpired:
		return ErrExpired
	case flows.ValidateFailureClockSkew:
		return ErrTokenClockSkew
	case flows.ValidateFailureWrongType:
		return ErrWrongType
	case flows.ValidateFailureRevoked:
		return ErrRevoked
	case flows.ValidateFailureStore:
		return storeError(err)
	default:
		return fmt.Errorf("unknown validation failure %d: %v", kind, err)
	}
}

// storeError guarantees that every revocation store failure surfaces as
// ErrStoreUnavailable and never as ErrRevoked.
func storeError(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
