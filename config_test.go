package goSession

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test config valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh not longer than access",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = c.JWT.AccessTTL
			},
			wantValid: false,
		},
		{
			name: "fractional seconds",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 1500 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "hs256 short key",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "hs256 missing key",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "ed25519 with keys",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PrivateKey = priv
				c.JWT.PublicKey = pub
			},
			wantValid: true,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PrivateKey = priv
			},
			wantValid: false,
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "negative prune interval",
			mutate: func(c *Config) {
				c.Revocation.PruneInterval = -time.Second
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigNeedsKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without a key to be rejected")
	}
	if cfg.JWT.AccessTTL != 15*time.Minute || cfg.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected default ttls %v %v", cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	}
	if cfg.Security.RevokeOnChainReuse {
		t.Fatal("chain revocation on reuse must be opt-in")
	}
}

func TestCloneConfigCopiesKeyMaterial(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = append([]byte(nil), testSigningKey...)
	cfg.JWT.VerifyKeys = map[string][]byte{"k1": append([]byte(nil), testSigningKey...)}

	clone := cloneConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	cfg.JWT.VerifyKeys["k1"][0] = 'X'

	if clone.JWT.PrivateKey[0] == 'X' || clone.JWT.VerifyKeys["k1"][0] == 'X' {
		t.Fatal("expected clone to be independent of the source")
	}
}

func containsCode(codes []string, want string) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}

func TestLintDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	codes := cfg.Lint().Codes()

	if !containsCode(codes, "chain_reuse_revocation_off") {
		t.Error("expected chain_reuse_revocation_off for defaults")
	}
	if containsCode(codes, "access_ttl_long") {
		t.Error("default access ttl should not warn")
	}
}

func TestLintHighSecurityConfigMinimalWarnings(t *testing.T) {
	cfg := HighSecurityConfig()
	cfg.JWT.Issuer = "auth.example.com"
	codes := cfg.Lint().Codes()

	for _, code := range []string{"access_ttl_long", "refresh_ttl_long", "clock_skew_large", "chain_reuse_revocation_off", "issuer_empty"} {
		if containsCode(codes, code) {
			t.Errorf("HighSecurityConfig should not produce warning %q", code)
		}
	}
}

func TestLintLongLifetimes(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.AccessTTL = time.Hour
	cfg.JWT.RefreshTTL = 90 * 24 * time.Hour
	cfg.Security.MaxClockSkew = 10 * time.Minute
	codes := cfg.Lint().Codes()

	for _, code := range []string{"access_ttl_long", "refresh_ttl_long", "clock_skew_large"} {
		if !containsCode(codes, code) {
			t.Errorf("expected %q warning", code)
		}
	}
}
