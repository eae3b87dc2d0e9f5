package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	authmw "github.com/MrEthical07/goSession/middleware"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	codeInvalidInput = "invalid_input"
	codeUnauthorized = "unauthorized"
)

type response struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errorMessages = map[string]string{
	goSession.CodeMalformed:          "token is malformed",
	goSession.CodeBadSignature:       "token signature is invalid",
	goSession.CodeExpired:            "token has expired",
	goSession.CodeClockSkew:          "token issued in the future",
	goSession.CodeWrongType:          "token has the wrong type",
	goSession.CodeRevoked:            "token has been revoked",
	goSession.CodeStoreUnavailable:   "session store unavailable, retry later",
	goSession.CodeInvalidCredentials: "invalid credentials",
	goSession.CodeInternal:           "an internal error occurred",
}

// writeError maps a goSession error onto the envelope. Internal errors are
// logged with the request id and never echoed.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if errors.Is(err, authmw.ErrMissingBearer) {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: codeUnauthorized, Message: "missing bearer token"},
		})
		return
	}

	status := goSession.StatusCode(err)
	code := goSession.ErrorCode(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, response{
		Error: &errorResponse{Code: code, Message: errorMessages[code]},
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = msgForTag(fe)
		}
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: codeInvalidInput, Message: "request validation failed", Fields: fields},
		})
		return
	}
	writeJSON(w, http.StatusBadRequest, response{
		Error: &errorResponse{Code: codeInvalidInput, Message: err.Error()},
	})
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
