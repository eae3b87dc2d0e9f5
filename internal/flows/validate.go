package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/revocation"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureDecode
	ValidateFailureExpired
	ValidateFailureClockSkew
	ValidateFailureWrongType
	ValidateFailureRevoked
	ValidateFailureStore
)

// ValidateResult carries the decoded claims and the classified failure, if
// any. Claims is set for every failure after signature verification.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// RevocationChecker is the read side of the revocation store.
type RevocationChecker interface {
	Contains(ctx context.Context, id string) (bool, error)
}

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	Decode       func(string) (*jwt.Claims, error)
	Now          func() time.Time
	MaxClockSkew time.Duration
	Store        RevocationChecker
}

// RunValidate decodes tokenStr and checks expiry, issue time, type and, for
// refresh tokens, the token and chain revocation entries. Access tokens never
// touch the store.
func RunValidate(ctx context.Context, tokenStr string, expected jwt.TokenType, deps ValidateDeps) ValidateResult {
	claims, err := deps.Decode(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureDecode, Err: err}
	}

	now := deps.Now()
	if !now.Before(claims.ExpiresAt) {
		return ValidateResult{Failure: ValidateFailureExpired, Claims: claims}
	}
	if deps.MaxClockSkew >= 0 && claims.IssuedAt.After(now.Add(deps.MaxClockSkew)) {
		return ValidateResult{Failure: ValidateFailureClockSkew, Claims: claims}
	}
	if claims.Type != expected {
		return ValidateResult{Failure: ValidateFailureWrongType, Claims: claims}
	}
	if expected != jwt.TokenRefresh {
		return ValidateResult{Claims: claims}
	}

	for _, id := range []string{claims.TokenID, revocation.ChainKey(claims.ChainID)} {
		revoked, err := deps.Store.Contains(ctx, id)
		if err != nil {
			return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
		}
		if revoked {
			return ValidateResult{Failure: ValidateFailureRevoked, Claims: claims}
		}
	}
	return ValidateResult{Claims: claims}
}
