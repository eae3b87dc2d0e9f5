package goSession

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/revocation"
)

const tracerName = "github.com/MrEthical07/goSession"

// Builder assembles an Engine. A Builder can be used for one Build call.
type Builder struct {
	config Config

	store    revocation.Store
	redis    redis.UniversalClient
	postgres revocation.DBTX

	logger         *slog.Logger
	clock          Clock
	auditSink      AuditSink
	tracerProvider trace.TracerProvider

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRevocationStore uses store as the revocation backend. It takes
// precedence over WithRedis and WithPostgres.
func (b *Builder) WithRevocationStore(store revocation.Store) *Builder {
	b.store = store
	return b
}

// WithRedis backs revocation with Redis under Config.Revocation.RedisPrefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres backs revocation with the revoked_tokens table. The schema
// must already be migrated with [revocation.Migrate].
func (b *Builder) WithPostgres(db revocation.DBTX) *Builder {
	b.postgres = db
	return b
}

// WithLogger sets the logger for best-effort failures and reuse warnings.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every expiry decision.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithAuditSink sets the audit destination. Events are only emitted when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider enables spans around Login, Refresh and Logout.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. Without an
// explicit backend the engine uses an in-memory store, which is only
// correct for a single process.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := jwt.NewManager(cfg.jwtConfig())
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- REVOCATION STORE --------
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	store := b.store
	switch {
	case store != nil:
	case b.redis != nil:
		store = revocation.NewRedisStore(b.redis, cfg.Revocation.RedisPrefix, revocation.WithRedisClock(clock))
	case b.postgres != nil:
		pg := revocation.NewPostgresStore(b.postgres, revocation.WithPostgresClock(clock))
		if cfg.Revocation.PruneInterval > 0 {
			go prunePostgres(janitorCtx, pg, cfg.Revocation.PruneInterval, logger)
		}
		store = pg
	default:
		mem := revocation.NewMemoryStore(revocation.WithMemoryClock(clock))
		if cfg.Revocation.PruneInterval > 0 {
			mem.StartJanitor(janitorCtx, cfg.Revocation.PruneInterval)
		}
		store = mem
	}

	// -------- COMPONENTS --------
	issuer := NewIssuer(codec, IssuerConfig{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}, clock)
	validator := NewValidator(codec, store, clock, cfg.Security.MaxClockSkew)
	rotator := NewRotator(validator, issuer, store, RotatorConfig{
		RevokeOnChainReuse: cfg.Security.RevokeOnChainReuse,
		RefreshTTL:         cfg.JWT.RefreshTTL,
		Logger:             logger,
	}, clock)

	b.built = true

	return &Engine{
		config:    cfg,
		codec:     codec,
		store:     store,
		issuer:    issuer,
		validator: validator,
		rotator:   rotator,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger,
		tracer:      tp.Tracer(tracerName),
		clock:       clock,
		stopJanitor: stopJanitor,
	}, nil
}

func prunePostgres(ctx context.Context, store *revocation.PostgresStore, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Prune(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.WarnContext(ctx, "goSession: revocation prune failed", "error", err)
				}
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "goSession: pruned revocation entries", "removed", n)
			}
		}
	}
}
