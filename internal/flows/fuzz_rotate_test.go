package flows

import (
	"context"
	"testing"
)

// FuzzRunRotate feeds arbitrary strings to rotation.
// Goal: no panics, and nothing but a genuine refresh token yields a pair.
func FuzzRunRotate(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJIUzI1NiJ9.e30.")
	f.Add("!!!not-base64!!!.x.y")

	f.Fuzz(func(t *testing.T, input string) {
		h := newHarness(t)
		pair := h.login(t)
		if input == pair.RefreshToken {
			return
		}
		res := RunRotate(context.Background(), input, h.rotateDeps(true))
		if res.Failure == RotateFailureNone {
			t.Fatalf("arbitrary input %q produced a token pair", input)
		}
		if res.Pair.RefreshToken != "" {
			t.Fatal("failed rotation must not carry tokens")
		}
	})
}
