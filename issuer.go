package goSession

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goSession/internal/flows"
)

// IssuerConfig holds the token lifetimes used by an Issuer.
type IssuerConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issuer mints access/refresh pairs. It performs no I/O.
type Issuer struct {
	deps flows.IssueDeps
}

// NewIssuer returns an Issuer signing through codec. A nil clock uses time.Now.
func NewIssuer(codec Codec, cfg IssuerConfig, clock Clock) *Issuer {
	return &Issuer{
		deps: flows.IssueDeps{
			Encode:     codec.Encode,
			NewID:      uuid.NewString,
			Now:        clock.now,
			AccessTTL:  cfg.AccessTTL,
			RefreshTTL: cfg.RefreshTTL,
		},
	}
}

// Issue starts a new rotation chain for subject.
func (i *Issuer) Issue(subject string) (TokenPair, error) {
	return i.IssueInChain(subject, "")
}

// IssueInChain mints a pair that continues chainID. Rotation uses it so the
// replacement pair stays revocable together with its predecessors.
func (i *Issuer) IssueInChain(subject, chainID string) (TokenPair, error) {
	if strings.TrimSpace(subject) == "" {
		return TokenPair{}, ErrInvalidSubject
	}
	pair, err := flows.RunIssue(subject, chainID, i.deps)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	return pair, nil
}
