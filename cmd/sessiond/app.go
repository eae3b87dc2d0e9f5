package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/audit/kafka"
	"github.com/MrEthical07/goSession/httpapi"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/revocation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

type app struct {
	cfg     config.Server
	logger  *slog.Logger
	engine  *goSession.Engine
	server  *http.Server
	closers []func()
}

func newApp(ctx context.Context, cfg config.Server, logger *slog.Logger) (*app, error) {
	engineCfg, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	for _, w := range engineCfg.Lint() {
		logger.Warn("config lint", slog.String("code", w.Code), slog.String("message", w.Message))
	}

	a := &app{cfg: cfg, logger: logger}
	b := goSession.New().WithConfig(engineCfg).WithLogger(logger)

	if err := a.attachStore(ctx, b); err != nil {
		a.close()
		return nil, err
	}
	var sinks []goSession.AuditSink
	if cfg.AuditLog {
		sinks = append(sinks, goSession.NewSlogSink(logger.With(slog.String("component", "audit"))))
	}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := kafka.NewSink(kafka.DefaultConfig(cfg.KafkaBrokers, cfg.KafkaAuditTopic), logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = sink.Close() })
		sinks = append(sinks, sink)
	}
	if len(sinks) > 0 {
		b = b.WithAuditSink(goSession.NewMultiSink(sinks...))
	}

	engine, err := b.Build()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	// Engine.Close drains audit events, so it must run before the sink closes.
	a.closers = append([]func(){engine.Close}, a.closers...)
	a.engine = engine

	var metrics http.Handler
	if cfg.MetricsEnabled {
		metrics = prometheus.Handler(engine)
	}
	if len(cfg.StaticUsers) == 0 {
		logger.Warn("STATIC_USERS is empty; every login will be rejected")
	}
	a.server = &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.RouterConfig{
			Sessions: engine,
			Verifier: httpapi.NewStaticVerifier(cfg.StaticUsers),
			Logger:   logger,
			Metrics:  metrics,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

func (a *app) attachStore(ctx context.Context, b *goSession.Builder) error {
	switch a.cfg.RevocationBackend {
	case config.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{a.cfg.RedisAddr},
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		b.WithRedis(client)

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, a.cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		db := stdlib.OpenDBFromPool(pool)
		err = revocation.Migrate(ctx, db)
		_ = db.Close()
		if err != nil {
			return err
		}
		b.WithPostgres(pool)

	default:
		a.logger.Warn("using in-memory revocation store; revocations are lost on restart and not shared between replicas")
	}
	return nil
}

// Run serves until ctx is cancelled, then shuts down within
// ShutdownTimeout.
func (a *app) Run(ctx context.Context) error {
	defer a.close()

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.serve(ctx, ln)
}

func (a *app) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (a *app) close() {
	for _, fn := range a.closers {
		fn()
	}
	a.closers = nil
}
