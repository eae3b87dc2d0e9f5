package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// AccessValidator is satisfied by *goSession.Engine.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*goSession.Claims, error)
}

// ErrorHandler writes the response for a rejected request. The
// WWW-Authenticate challenge is already set when it runs.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// ErrMissingBearer is passed to the ErrorHandler when the request carries no
// bearer token.
var ErrMissingBearer = errors.New("missing bearer token")

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*goSession.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*goSession.Claims)
	return c, ok && c != nil
}

// WithClaims stores claims in ctx the way Guard does.
func WithClaims(ctx context.Context, c *goSession.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// Guard rejects requests without a valid access token using plain-text
// error bodies.
func Guard(v AccessValidator) func(http.Handler) http.Handler {
	return GuardWithErrorHandler(v, nil)
}

// GuardWithErrorHandler is Guard with a custom rejection writer. A nil
// onError falls back to plain-text bodies.
func GuardWithErrorHandler(v AccessValidator, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = writePlain
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				onError(w, r, goSession.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="goSession"`)
				onError(w, r, ErrMissingBearer)
				return
			}

			claims, err := v.ValidateAccess(r.Context(), token)
			if err != nil {
				if s := goSession.StatusCode(err); s == http.StatusUnauthorized || s == http.StatusBadRequest {
					w.Header().Set("WWW-Authenticate",
						`Bearer realm="goSession", error="invalid_token", error_description="`+goSession.ErrorCode(err)+`"`)
				}
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// Status returns the HTTP status for an error produced by Guard.
func Status(err error) int {
	if errors.Is(err, ErrMissingBearer) {
		return http.StatusUnauthorized
	}
	return goSession.StatusCode(err)
}

func writePlain(w http.ResponseWriter, _ *http.Request, err error) {
	status := Status(err)
	http.Error(w, http.StatusText(status), status)
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
