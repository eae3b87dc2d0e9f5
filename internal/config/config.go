// Package config loads the sessiond server configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Revocation backends accepted by REVOCATION_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Server is the sessiond environment configuration.
type Server struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	AccessTTLSeconds   int    `env:"ACCESS_TTL_SECONDS" envDefault:"900"`
	RefreshTTLSeconds  int    `env:"REFRESH_TTL_SECONDS" envDefault:"604800"`
	SigningKey         string `env:"SIGNING_KEY,required,unset"`
	SigningMethod      string `env:"SIGNING_METHOD" envDefault:"hs256"`
	TokenIssuer        string `env:"TOKEN_ISSUER"`
	RevokeOnChainReuse bool   `env:"REVOKE_ON_CHAIN_REUSE" envDefault:"false"`

	RevocationBackend string        `env:"REVOCATION_BACKEND" envDefault:"memory"`
	RedisAddr         string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword     string        `env:"REDIS_PASSWORD,unset"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix       string        `env:"REDIS_PREFIX" envDefault:"rv"`
	PostgresDSN       string        `env:"POSTGRES_DSN,unset"`
	PruneInterval     time.Duration `env:"PRUNE_INTERVAL" envDefault:"5m"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"session-audit"`
	AuditLog        bool     `env:"AUDIT_LOG" envDefault:"false"`
	MetricsEnabled  bool     `env:"METRICS_ENABLED" envDefault:"true"`

	StaticUsers map[string]string `env:"STATIC_USERS" envSeparator:"," envKeyValSeparator:":"`
}

// Load reads an optional .env file at dotenvPath, then the environment.
// Variables already set in the environment win over the file.
func Load(dotenvPath string) (Server, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Server{}, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (s Server) validate() error {
	switch s.RevocationBackend {
	case BackendMemory:
	case BackendRedis:
		if s.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis backend")
		}
	case BackendPostgres:
		if s.PostgresDSN == "" {
			return errors.New("config: POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown REVOCATION_BACKEND %q", s.RevocationBackend)
	}
	if s.PruneInterval < 0 {
		return errors.New("config: PRUNE_INTERVAL must be >= 0")
	}
	return nil
}

// Engine converts s to a validated engine configuration.
func (s Server) Engine() (goSession.Config, error) {
	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessTTL = time.Duration(s.AccessTTLSeconds) * time.Second
	cfg.JWT.RefreshTTL = time.Duration(s.RefreshTTLSeconds) * time.Second
	cfg.JWT.SigningMethod = s.SigningMethod
	cfg.JWT.PrivateKey = []byte(s.SigningKey)
	if jwt.SigningMethod(s.SigningMethod) == jwt.MethodEd25519 {
		pub, err := jwt.DerivePublicKey(cfg.JWT.PrivateKey)
		if err != nil {
			return goSession.Config{}, fmt.Errorf("config: SIGNING_KEY: %w", err)
		}
		cfg.JWT.PublicKey = pub
	}
	cfg.JWT.Issuer = s.TokenIssuer
	cfg.Security.RevokeOnChainReuse = s.RevokeOnChainReuse
	cfg.Revocation.RedisPrefix = s.RedisPrefix
	cfg.Revocation.PruneInterval = s.PruneInterval
	cfg.Audit.Enabled = s.AuditLog || len(s.KafkaBrokers) > 0
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsEnabled

	if err := cfg.Validate(); err != nil {
		return goSession.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
