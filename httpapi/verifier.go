package httpapi

import (
	"context"
	"crypto/subtle"

	goSession "github.com/MrEthical07/goSession"
)

// CredentialVerifier authenticates a login request and returns the subject
// to issue tokens for. It returns goSession.ErrInvalidCredentials on a
// mismatch.
type CredentialVerifier interface {
	Verify(ctx context.Context, req LoginRequest) (subject string, err error)
}

// StaticVerifier checks credentials against a fixed username to password
// map. It is meant for development and tests.
type StaticVerifier struct {
	users map[string][]byte
}

// NewStaticVerifier copies users into a StaticVerifier.
func NewStaticVerifier(users map[string]string) *StaticVerifier {
	m := make(map[string][]byte, len(users))
	for u, p := range users {
		m[u] = []byte(p)
	}
	return &StaticVerifier{users: m}
}

// Verify compares the password in constant time. Unknown users are compared
// against a dummy value so both failure paths cost the same.
func (v *StaticVerifier) Verify(_ context.Context, req LoginRequest) (string, error) {
	want, ok := v.users[req.Username]
	if !ok {
		want = []byte("\x00unknown-user")
	}
	match := subtle.ConstantTimeCompare(want, []byte(req.Password)) == 1
	if !ok || !match {
		return "", goSession.ErrInvalidCredentials
	}
	return req.Username, nil
}
