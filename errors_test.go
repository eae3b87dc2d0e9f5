package goSession

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusAndErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusOK, ""},
		{ErrMalformedToken, http.StatusBadRequest, CodeMalformed},
		{ErrBadSignature, http.StatusUnauthorized, CodeBadSignature},
		{ErrExpired, http.StatusUnauthorized, CodeExpired},
		{ErrTokenClockSkew, http.StatusUnauthorized, CodeClockSkew},
		{ErrWrongType, http.StatusUnauthorized, CodeWrongType},
		{ErrRevoked, http.StatusUnauthorized, CodeRevoked},
		{ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable},
		{ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials},
		{ErrInvalidSubject, http.StatusInternalServerError, CodeInternal},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
		{fmt.Errorf("%w: connection refused", ErrStoreUnavailable), http.StatusServiceUnavailable, CodeStoreUnavailable},
	}

	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.status {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.status)
		}
		if got := ErrorCode(tt.err); got != tt.code {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.code)
		}
	}
}

func TestStoreErrorNeverReadsAsRevoked(t *testing.T) {
	err := storeError(errors.New("dial tcp: refused"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrRevoked) {
		t.Fatal("store errors must not match ErrRevoked")
	}
}
