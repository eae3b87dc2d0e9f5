package goSession

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventChainRevoked         = "chain_revoked"
	auditEventLogout               = "logout"
)

// AuditErrorCode is the reason recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrMalformed          AuditErrorCode = "malformed"
	auditErrBadSignature       AuditErrorCode = "bad_signature"
	auditErrExpired            AuditErrorCode = "expired"
	auditErrClockSkew          AuditErrorCode = "clock_skew"
	auditErrWrongType          AuditErrorCode = "wrong_type"
	auditErrRevoked            AuditErrorCode = "revoked"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidSubject     AuditErrorCode = "invalid_subject"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	claims *Claims,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if claims != nil {
		event.Subject = claims.Subject
		event.ChainID = claims.ChainID
		event.TokenID = claims.TokenID
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrMalformedToken):
		return auditErrMalformed
	case errors.Is(err, ErrBadSignature):
		return auditErrBadSignature
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrTokenClockSkew):
		return auditErrClockSkew
	case errors.Is(err, ErrWrongType):
		return auditErrWrongType
	case errors.Is(err, ErrRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidSubject):
		return auditErrInvalidSubject
	default:
		return auditErrInternal
	}
}
