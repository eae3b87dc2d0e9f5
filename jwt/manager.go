package jwt

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when a token cannot be split, decoded, or
	// parsed into the session claim set.
	ErrMalformedToken = errors.New("malformed token")
	// ErrBadSignature is returned when the signature does not verify against
	// the configured key material, or the token was issued for someone else.
	ErrBadSignature = errors.New("bad token signature")
)

// SigningMethod selects the JWS algorithm used for session tokens.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// MinHMACKeySize is the shortest shared secret accepted for hs256.
const MinHMACKeySize = 32

// Config defines the key material and claim expectations of a [Manager].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	VerifyKeys    map[string][]byte
}

// TokenType distinguishes access tokens from refresh tokens. The zero value
// is not a valid token type.
type TokenType uint8

const (
	// TokenAccess marks a short-lived bearer credential.
	TokenAccess TokenType = iota + 1
	// TokenRefresh marks a long-lived, single-use rotation credential.
	TokenRefresh
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// String returns the wire name of t.
func (t TokenType) String() string {
	switch t {
	case TokenAccess:
		return tokenTypeAccess
	case TokenRefresh:
		return tokenTypeRefresh
	default:
		return "unknown"
	}
}

// ParseTokenType maps a wire name back to a [TokenType].
func ParseTokenType(s string) (TokenType, bool) {
	switch s {
	case tokenTypeAccess:
		return TokenAccess, true
	case tokenTypeRefresh:
		return TokenRefresh, true
	default:
		return 0, false
	}
}

// Claims is the decoded, signature-verified claim set of a session token.
type Claims struct {
	Subject   string
	TokenID   string
	Type      TokenType
	ChainID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
	Audience  []string
}

type wireClaims struct {
	Type  string `json:"typ"`
	Chain string `json:"chn"`
	jwt.RegisteredClaims
}

type wireHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Manager encodes and decodes session tokens.
//
// Manager instances are intended to be configured during initialization and then treated as immutable.
type Manager struct {
	config Config
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager returns an error when the signing method is unknown or the key
// material does not match it. The returned Manager is safe for concurrent use.
func NewManager(cfg Config) (*Manager, error) {
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		if len(cfg.PrivateKey) < MinHMACKeySize {
			return nil, fmt.Errorf("hs256 key must be at least %d bytes", MinHMACKeySize)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if len(key) < MinHMACKeySize {
				return nil, fmt.Errorf("hs256 verify key for kid %q is too short", kid)
			}
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// Algorithm returns the JWS "alg" value the manager signs and accepts.
func (j *Manager) Algorithm() string {
	return j.getMethod().Alg()
}

// Encode describes the encode operation and its observable behavior.
//
// Encode signs c with the server key. The output is deterministic for equal
// claims and keys. Encode fails when c lacks a subject, a chain id, a valid
// type, or timestamps, and when a refresh claim set has no token id.
func (j *Manager) Encode(c Claims) (string, error) {
	if c.Subject == "" {
		return "", errors.New("claims subject is required")
	}
	if c.Type != TokenAccess && c.Type != TokenRefresh {
		return "", errors.New("claims token type is invalid")
	}
	if c.Type == TokenRefresh && c.TokenID == "" {
		return "", errors.New("refresh claims require a token id")
	}
	if c.ChainID == "" {
		return "", errors.New("claims chain id is required")
	}
	if c.IssuedAt.IsZero() || c.ExpiresAt.IsZero() {
		return "", errors.New("claims timestamps are required")
	}

	wc := wireClaims{
		Type:  c.Type.String(),
		Chain: c.ChainID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			ID:        c.TokenID,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			Issuer:    j.config.Issuer,
		},
	}
	if c.Issuer != "" {
		wc.Issuer = c.Issuer
	}
	switch {
	case len(c.Audience) > 0:
		wc.Audience = jwt.ClaimStrings(c.Audience)
	case j.config.Audience != "":
		wc.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), wc)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Decode describes the decode operation and its observable behavior.
//
// Decode verifies the signature over the raw header and claims segments
// before any claim is interpreted, so a tampered claims segment yields
// [ErrBadSignature] even when it still decodes cleanly. Expiry is not judged
// here; callers compare ExpiresAt against their own clock.
func (j *Manager) Decode(tokenStr string) (*Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	rawHeader, err := decodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	rawClaims, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: claims: %v", ErrMalformedToken, err)
	}
	sig, err := decodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformedToken, err)
	}

	var header wireHeader
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}

	method := j.getMethod()
	if header.Alg != method.Alg() {
		return nil, fmt.Errorf("%w: unexpected signing algorithm %q", ErrBadSignature, header.Alg)
	}
	key, err := j.verifyKeyFor(header.Kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if err := method.Verify(parts[0]+"."+parts[1], sig, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	var wc wireClaims
	if err := json.Unmarshal(rawClaims, &wc); err != nil {
		return nil, fmt.Errorf("%w: claims: %v", ErrMalformedToken, err)
	}

	typ, ok := ParseTokenType(wc.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrMalformedToken, wc.Type)
	}
	if wc.Subject == "" || wc.Chain == "" {
		return nil, fmt.Errorf("%w: missing subject or chain", ErrMalformedToken)
	}
	if wc.IssuedAt == nil || wc.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing iat or exp", ErrMalformedToken)
	}
	if typ == TokenRefresh && wc.ID == "" {
		return nil, fmt.Errorf("%w: refresh token without jti", ErrMalformedToken)
	}

	if j.config.Issuer != "" && wc.Issuer != j.config.Issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrBadSignature)
	}
	if j.config.Audience != "" && !containsAudience(wc.Audience, j.config.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrBadSignature)
	}

	return &Claims{
		Subject:   wc.Subject,
		TokenID:   wc.ID,
		Type:      typ,
		ChainID:   wc.Chain,
		IssuedAt:  wc.IssuedAt.Time,
		ExpiresAt: wc.ExpiresAt.Time,
		Issuer:    wc.Issuer,
		Audience:  []string(wc.Audience),
	}, nil
}

func (j *Manager) verifyKeyFor(kid string) (interface{}, error) {
	if len(j.config.VerifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return j.keyBytesToVerifyKey(key)
	}

	if j.config.KeyID != "" {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return j.getVerifyKey()
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		if len(j.config.PrivateKey) == 0 {
			return nil, errors.New("ed25519 private key not configured")
		}
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		if len(j.config.PublicKey) == 0 {
			return nil, errors.New("ed25519 public key not configured")
		}
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func decodeSegment(seg string) ([]byte, error) {
	if seg == "" {
		return nil, errors.New("empty segment")
	}
	return base64.RawURLEncoding.DecodeString(seg)
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// DerivePublicKey returns the Ed25519 public key of a raw or PKCS#8 PEM
// private key.
func DerivePublicKey(privateKey []byte) (ed25519.PublicKey, error) {
	priv, err := parseEdPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
