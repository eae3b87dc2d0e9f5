package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func buildAuditTestEngine(t *testing.T, mutate func(*Config), sink AuditSink) *Engine {
	t.Helper()

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := New().WithConfig(cfg).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func nextEvent(t *testing.T, events <-chan AuditEvent) AuditEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditLoginAndReuseEvents(t *testing.T) {
	sink := NewChannelSink(16)
	engine := buildAuditTestEngine(t, func(c *Config) {
		c.Security.RevokeOnChainReuse = true
	}, sink)

	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.7"), "curl/8")
	pair, err := engine.Login(ctx, "alice")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	ev := nextEvent(t, sink.Events())
	if ev.EventType != auditEventLoginSuccess || !ev.Success {
		t.Fatalf("unexpected login event %+v", ev)
	}
	if ev.Subject != "alice" || ev.ChainID != pair.ChainID || ev.IP != "203.0.113.7" {
		t.Fatalf("unexpected login event fields %+v", ev)
	}
	if ev.Metadata["user_agent"] != "curl/8" {
		t.Fatalf("expected user agent metadata, got %v", ev.Metadata)
	}

	if _, err := engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ev := nextEvent(t, sink.Events()); ev.EventType != auditEventRefreshSuccess {
		t.Fatalf("expected refresh success, got %+v", ev)
	}

	_, _ = engine.Refresh(ctx, pair.RefreshToken)
	reuse := nextEvent(t, sink.Events())
	if reuse.EventType != auditEventRefreshReuseDetected || reuse.Success {
		t.Fatalf("expected reuse event, got %+v", reuse)
	}
	if reuse.Error != string(auditErrRevoked) || reuse.Metadata["chain_revoked"] != "true" {
		t.Fatalf("unexpected reuse event fields %+v", reuse)
	}
	if ev := nextEvent(t, sink.Events()); ev.EventType != auditEventChainRevoked {
		t.Fatalf("expected chain revoked event, got %+v", ev)
	}
}

func TestAuditLogoutEvent(t *testing.T) {
	sink := NewChannelSink(16)
	engine := buildAuditTestEngine(t, nil, sink)
	ctx := context.Background()

	pair, err := engine.Login(ctx, "alice")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_ = nextEvent(t, sink.Events())

	if err := engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	ev := nextEvent(t, sink.Events())
	if ev.EventType != auditEventLogout || !ev.Success || ev.Metadata["already_ended"] != "false" {
		t.Fatalf("unexpected logout event %+v", ev)
	}

	if err := engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if ev := nextEvent(t, sink.Events()); ev.Metadata["already_ended"] != "true" {
		t.Fatalf("expected repeated logout to be marked, got %+v", ev)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := &countingSink{}
	engine, err := New().WithConfig(testConfig()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := engine.Login(context.Background(), "alice"); err != nil {
		t.Fatalf("login: %v", err)
	}
	engine.Close()

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no events with audit disabled, got %d", got)
	}
}

func TestAuditDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	engine := buildAuditTestEngine(t, func(c *Config) {
		c.Audit.BufferSize = 1
		c.Audit.DropIfFull = true
	}, sink)

	for i := 0; i < 20; i++ {
		if _, err := engine.Login(context.Background(), "alice"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	close(sink.gate)

	if engine.AuditDropped() == 0 {
		t.Fatal("expected dropped audit events under backpressure")
	}
}

func TestAuditCloseFlushesPending(t *testing.T) {
	sink := &countingSink{}
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 128
	engine, err := New().WithConfig(cfg).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for i := 0; i < 50; i++ {
		if _, err := engine.Login(context.Background(), "alice"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	engine.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 flushed events, got %d", got)
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLogout, Subject: "alice", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLoginFailure, Error: "invalid_credentials"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Error != "invalid_credentials" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSlogSinkLogsFailuresAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), AuditEvent{
		EventType: auditEventRefreshReuseDetected,
		ChainID:   "chain-1",
		Error:     string(auditErrRevoked),
	})

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected warn level, got %s", out)
	}
	if !strings.Contains(out, `"chain_id":"chain-1"`) || !strings.Contains(out, `"error":"revoked"`) {
		t.Fatalf("expected event attributes, got %s", out)
	}
}
