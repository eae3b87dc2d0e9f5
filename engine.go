package goSession

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/revocation"
)

// Engine issues, validates, rotates and revokes session tokens. It wraps
// Issuer, Validator and Rotator with metrics, audit events, tracing spans
// and logging.
//
// Engine instances are built once with [Builder] and are safe for concurrent use.
type Engine struct {
	config      Config
	codec       Codec
	store       revocation.Store
	issuer      *Issuer
	validator   *Validator
	rotator     *Rotator
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       Clock
	stopJanitor context.CancelFunc
}

// Close stops background pruning and flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.stopJanitor != nil {
		e.stopJanitor()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Issuer returns the engine's issuer.
func (e *Engine) Issuer() *Issuer { return e.issuer }

// Validator returns the engine's validator.
func (e *Engine) Validator() *Validator { return e.validator }

// Rotator returns the engine's rotator.
func (e *Engine) Rotator() *Rotator { return e.rotator }

// Store returns the revocation store the engine was built with.
func (e *Engine) Store() revocation.Store { return e.store }

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

// Ping reports whether the revocation store is reachable. Stores without a
// health check always report healthy.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if p, ok := e.store.(revocation.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Login issues a fresh pair in a new chain for an already authenticated
// subject. Credential checks happen before this call.
func (e *Engine) Login(ctx context.Context, subject string) (TokenPair, error) {
	if e == nil || e.issuer == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	ctx, span := e.tracer.Start(ctx, "goSession.Login")
	defer span.End()

	pair, err := e.issuer.Issue(subject)
	claims := &Claims{Subject: subject, ChainID: pair.ChainID}
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, claims, err, nil)
		recordSpanError(span, err)
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, claims, nil, nil)
	span.SetAttributes(attribute.String("session.chain_id", pair.ChainID))
	return pair, nil
}

// RecordLoginFailure accounts for a login rejected before Login was called,
// typically by a credential check.
func (e *Engine) RecordLoginFailure(ctx context.Context, subject string, err error) {
	if e == nil {
		return
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, &Claims{Subject: subject}, err, nil)
}

// Refresh rotates a refresh token. See [Rotator.Rotate].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	res := e.RefreshWithResult(ctx, refreshToken)
	return res.Pair, res.Err
}

// RefreshWithResult rotates a refresh token and reports reuse details.
func (e *Engine) RefreshWithResult(ctx context.Context, refreshToken string) RotateResult {
	if e == nil || e.rotator == nil {
		return RotateResult{Err: ErrEngineNotReady}
	}
	ctx, span := e.tracer.Start(ctx, "goSession.Refresh")
	defer span.End()

	res := e.rotator.RotateWithResult(ctx, refreshToken)
	if res.Claims != nil {
		span.SetAttributes(attribute.String("session.chain_id", res.Claims.ChainID))
	}
	span.SetAttributes(
		attribute.Bool("session.reuse_detected", res.ReuseDetected),
		attribute.Bool("session.chain_revoked", res.ChainRevoked),
	)

	if res.Err == nil {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Claims, nil, nil)
		return res
	}

	e.metricInc(MetricRefreshFailure)
	e.countFailureCause(res.Err)
	recordSpanError(span, res.Err)

	switch {
	case res.ReuseDetected:
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.WarnContext(ctx, "goSession: refresh token reuse detected",
			"chain_id", chainIDOf(res.Claims),
			"chain_revoked", res.ChainRevoked,
		)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.Claims, res.Err, func() map[string]string {
			return map[string]string{"chain_revoked": strconv.FormatBool(res.ChainRevoked)}
		})
		if res.ChainRevoked {
			e.metricInc(MetricChainRevoked)
			e.emitAudit(ctx, auditEventChainRevoked, true, res.Claims, nil, nil)
		}
	case errors.Is(res.Err, ErrStoreUnavailable):
		e.logger.ErrorContext(ctx, "goSession: revocation store unavailable during refresh", "error", res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.Claims, res.Err, nil)
	default:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.Claims, res.Err, nil)
	}
	return res
}

// Logout ends the chain of refreshToken. See [Rotator.Logout].
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.rotator == nil {
		return ErrEngineNotReady
	}
	ctx, span := e.tracer.Start(ctx, "goSession.Logout")
	defer span.End()

	res := e.rotator.LogoutWithResult(ctx, refreshToken)
	if res.Err != nil {
		e.countFailureCause(res.Err)
		recordSpanError(span, res.Err)
		if errors.Is(res.Err, ErrStoreUnavailable) {
			e.logger.ErrorContext(ctx, "goSession: revocation store unavailable during logout", "error", res.Err)
		}
		e.emitAudit(ctx, auditEventLogout, false, res.Claims, res.Err, nil)
		return res.Err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, res.Claims, nil, func() map[string]string {
		return map[string]string{"already_ended": strconv.FormatBool(res.AlreadyEnded)}
	})
	return nil
}

// Validate checks token as the expected type and records the outcome.
func (e *Engine) Validate(ctx context.Context, token string, expected TokenType) (*Claims, error) {
	if e == nil || e.validator == nil {
		return nil, ErrEngineNotReady
	}
	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	claims, err := e.validator.Validate(ctx, token, expected)

	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricValidateFailure)
		e.countFailureCause(err)
		return claims, err
	}
	e.metricInc(MetricValidateSuccess)
	return claims, nil
}

// ValidateAccess validates an access token. It never touches the store.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*Claims, error) {
	return e.Validate(ctx, token, TokenAccess)
}

func (e *Engine) countFailureCause(err error) {
	switch {
	case errors.Is(err, ErrExpired):
		e.metricInc(MetricTokenExpired)
	case errors.Is(err, ErrRevoked):
		e.metricInc(MetricTokenRevoked)
	case errors.Is(err, ErrStoreUnavailable):
		e.metricInc(MetricStoreUnavailable)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, ErrorCode(err))
}

func chainIDOf(c *Claims) string {
	if c == nil {
		return ""
	}
	return c.ChainID
}
