package goSession

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

// Config defines the token lifetimes, key material and policies of an Engine.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT        JWTConfig
	Security   SecurityConfig
	Revocation RevocationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines token lifetimes and signing material.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines validation and rotation policies.
type SecurityConfig struct {
	// RevokeOnChainReuse revokes the whole chain when a consumed refresh
	// token is presented again. Off by default: two tabs racing a refresh
	// would otherwise log each other out.
	RevokeOnChainReuse bool
	// MaxClockSkew bounds how far in the future an iat may lie.
	// A negative value disables the check.
	MaxClockSkew time.Duration
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig defines how the default store is built and maintained.
type RevocationConfig struct {
	RedisPrefix   string
	PruneInterval time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration: 15 minute access tokens,
// 7 day refresh tokens, hs256 signing. PrivateKey must still be set.
func DefaultConfig() Config {
	return defaultConfig()
}

// HighSecurityConfig tightens DefaultConfig: 5 minute access tokens, one day
// refresh tokens, chain revocation on reuse and a small skew allowance.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.Security.RevokeOnChainReuse = true
	cfg.Security.MaxClockSkew = 5 * time.Second
	return cfg
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
		},
		Security: SecurityConfig{
			RevokeOnChainReuse: false,
			MaxClockSkew:       30 * time.Second,
		},
		Revocation: RevocationConfig{
			RedisPrefix:   "rv",
			PruneInterval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) jwtConfig() jwt.Config {
	return jwt.Config{
		SigningMethod: jwt.SigningMethod(c.JWT.SigningMethod),
		PrivateKey:    c.JWT.PrivateKey,
		PublicKey:     c.JWT.PublicKey,
		Issuer:        c.JWT.Issuer,
		Audience:      c.JWT.Audience,
		KeyID:         c.JWT.KeyID,
		VerifyKeys:    c.JWT.VerifyKeys,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first structural problem in c.
//
// Validate does not mutate c and can be used concurrently.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.AccessTTL%time.Second != 0 || c.JWT.RefreshTTL%time.Second != 0 {
		return errors.New("JWT TTLs must be whole seconds")
	}

	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
		if len(c.JWT.PrivateKey) < jwt.MinHMACKeySize {
			return fmt.Errorf("hs256 PrivateKey must be at least %d bytes", jwt.MinHMACKeySize)
		}
	case jwt.MethodEd25519:
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Revocation
	if c.Revocation.PruneInterval < 0 {
		return errors.New("Revocation PruneInterval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal observation about a Config.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the ordered result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that are valid but likely unintended.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	if c.JWT.AccessTTL > 15*time.Minute {
		ws = append(ws, LintWarning{"access_ttl_long", "access tokens cannot be revoked; keep AccessTTL at 15 minutes or less"})
	}
	if c.JWT.RefreshTTL > 30*24*time.Hour {
		ws = append(ws, LintWarning{"refresh_ttl_long", "RefreshTTL above 30 days keeps revocation entries alive for a long time"})
	}
	if c.Security.MaxClockSkew > 2*time.Minute {
		ws = append(ws, LintWarning{"clock_skew_large", "MaxClockSkew above 2 minutes accepts tokens minted well in the future"})
	}
	if c.Security.MaxClockSkew < 0 {
		ws = append(ws, LintWarning{"clock_skew_disabled", "issue time is not checked"})
	}
	if !c.Security.RevokeOnChainReuse {
		ws = append(ws, LintWarning{"chain_reuse_revocation_off", "a stolen refresh token that loses the race leaves the winning chain alive"})
	}
	if c.JWT.Issuer == "" {
		ws = append(ws, LintWarning{"issuer_empty", "tokens are not bound to an issuer"})
	}
	return ws
}
