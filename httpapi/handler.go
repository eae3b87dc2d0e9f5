package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	authmw "github.com/MrEthical07/goSession/middleware"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// Sessions is the engine surface the handlers need. *goSession.Engine
// satisfies it.
type Sessions interface {
	Login(ctx context.Context, subject string) (goSession.TokenPair, error)
	RecordLoginFailure(ctx context.Context, subject string, err error)
	Refresh(ctx context.Context, refreshToken string) (goSession.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateAccess(ctx context.Context, token string) (*goSession.Claims, error)
	Ping(ctx context.Context) error
}

// --- Request DTOs ---

// LoginRequest is the JSON body of POST /login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=256"`
	Password string `json:"password" validate:"required,max=1024"`
}

// RefreshRequest is the JSON body of POST /refresh and POST /logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=8192"`
}

// --- Response types ---

// TokenResponse is the data payload of a successful login or refresh.
type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"`
}

// MeResponse is the data payload of GET /me.
type MeResponse struct {
	Subject   string    `json:"subject"`
	ChainID   string    `json:"chain_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func tokenResponse(p goSession.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		TokenType:        "Bearer",
	}
}

// Handler serves the session endpoints.
type Handler struct {
	sessions Sessions
	verifier CredentialVerifier
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(sessions Sessions, verifier CredentialVerifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		verifier: verifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, response{
				Error: &errorResponse{Code: codeInvalidInput, Message: "request body too large"},
			})
			return false
		}
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: codeInvalidInput, Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	subject, err := h.verifier.Verify(r.Context(), req)
	if err != nil {
		h.sessions.RecordLoginFailure(r.Context(), req.Username, err)
		if !errors.Is(err, goSession.ErrInvalidCredentials) {
			h.logger.ErrorContext(r.Context(), "credential verification failed", slog.String("error", err.Error()))
		}
		writeError(w, r, goSession.ErrInvalidCredentials, h.logger)
		return
	}

	pair, err := h.sessions.Login(r.Context(), subject)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, response{Data: tokenResponse(pair)})
}

// Refresh handles POST /refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, response{Data: tokenResponse(pair)})
}

// Logout handles POST /logout. Repeating a logout succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, response{Data: map[string]string{"status": "logged_out"}})
}

// Me handles GET /me behind the access-token guard.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := authmw.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, authmw.ErrMissingBearer, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, response{Data: MeResponse{
		Subject:   claims.Subject,
		ChainID:   claims.ChainID,
		ExpiresAt: claims.ExpiresAt,
	}})
}

// Health handles GET /healthz. It reports 503 when the revocation store is
// unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.sessions.Ping(ctx); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, response{Data: map[string]string{"status": "ok"}})
}

func (h *Handler) guardError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err, h.logger)
}
