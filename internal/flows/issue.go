package flows

import (
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// TokenPair is the result of a login or a successful rotation.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	ChainID          string    `json:"chain_id"`
}

// IssueDeps captures token minting dependencies.
type IssueDeps struct {
	Encode     func(jwt.Claims) (string, error)
	NewID      func() string
	Now        func() time.Time
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RunIssue mints an access/refresh pair for subject. An empty chainID starts
// a new chain. Both tokens carry the same second-truncated issue time.
func RunIssue(subject, chainID string, deps IssueDeps) (TokenPair, error) {
	if subject == "" {
		return TokenPair{}, errors.New("subject is required")
	}
	if chainID == "" {
		chainID = deps.NewID()
	}
	now := deps.Now().UTC().Truncate(time.Second)

	access := jwt.Claims{
		Subject:   subject,
		TokenID:   deps.NewID(),
		Type:      jwt.TokenAccess,
		ChainID:   chainID,
		IssuedAt:  now,
		ExpiresAt: now.Add(deps.AccessTTL),
	}
	refresh := jwt.Claims{
		Subject:   subject,
		TokenID:   deps.NewID(),
		Type:      jwt.TokenRefresh,
		ChainID:   chainID,
		IssuedAt:  now,
		ExpiresAt: now.Add(deps.RefreshTTL),
	}

	accessToken, err := deps.Encode(access)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := deps.Encode(refresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
		ChainID:          chainID,
	}, nil
}
