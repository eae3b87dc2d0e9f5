package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServerConfig() config.Server {
	return config.Server{
		HTTPAddr:          "127.0.0.1:0",
		ShutdownTimeout:   time.Second,
		AccessTTLSeconds:  900,
		RefreshTTLSeconds: 604800,
		SigningKey:        "0123456789abcdef0123456789abcdef",
		SigningMethod:     "hs256",
		RevocationBackend: config.BackendMemory,
		RedisPrefix:       "rv",
		MetricsEnabled:    true,
		AuditLog:          true,
		StaticUsers:       map[string]string{"alice": "secret"},
	}
}

func startApp(t *testing.T, cfg config.Server) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	a, err := newApp(ctx, cfg, logger)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		defer a.close()
		done <- a.serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return "http://" + ln.Addr().String()
}

func loginAndRefresh(t *testing.T, base string) {
	t.Helper()
	raw, _ := json.Marshal(map[string]string{"username": "alice", "password": "secret"})
	resp, err := http.Post(base+"/login", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	raw, _ = json.Marshal(map[string]string{"refresh_token": body.Data.RefreshToken})
	for _, want := range []int{http.StatusOK, http.StatusUnauthorized} {
		r, err := http.Post(base+"/refresh", "application/json", bytes.NewReader(raw))
		require.NoError(t, err)
		r.Body.Close()
		assert.Equal(t, want, r.StatusCode)
	}
}

func TestApp_MemoryBackend(t *testing.T) {
	base := startApp(t, testServerConfig())
	loginAndRefresh(t, base)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(out), "gosession_refresh_reuse_detected_total 1")
}

func TestApp_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testServerConfig()
	cfg.RevocationBackend = config.BackendRedis
	cfg.RedisAddr = mr.Addr()

	base := startApp(t, cfg)
	loginAndRefresh(t, base)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, mr.Keys())
}

func TestApp_RejectsUnreachableRedis(t *testing.T) {
	cfg := testServerConfig()
	cfg.RevocationBackend = config.BackendRedis
	cfg.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := newApp(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
