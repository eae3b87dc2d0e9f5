// Command sessiond serves goSession login, refresh and logout over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/logging"
)

func main() {
	dotenv := flag.String("env-file", ".env", "optional dotenv file loaded before the environment")
	flag.Parse()

	cfg, err := config.Load(*dotenv)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logging.New("sessiond", cfg.LogLevel)
	log.Info("starting sessiond",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("revocation_backend", cfg.RevocationBackend),
		slog.Bool("revoke_on_chain_reuse", cfg.RevokeOnChainReuse),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("sessiond stopped")
}
