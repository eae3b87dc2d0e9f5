package httpapi

import (
	"log/slog"
	"net"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	authmw "github.com/MrEthical07/goSession/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig wires NewRouter.
type RouterConfig struct {
	Sessions Sessions
	Verifier CredentialVerifier
	Logger   *slog.Logger
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter creates a chi router with the session routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	h := NewHandler(cfg.Sessions, cfg.Verifier, cfg.Logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(clientContext)

	r.Get("/healthz", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(authmw.GuardWithErrorHandler(cfg.Sessions, h.guardError))
		r.Get("/me", h.Me)
	})

	return r
}

// clientContext copies the caller address and user agent into the request
// context for audit events.
func clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := goSession.WithClientIP(r.Context(), ip)
		if ua := r.UserAgent(); ua != "" {
			ctx = goSession.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
