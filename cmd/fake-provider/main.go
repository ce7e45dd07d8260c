// Command fake-provider serves a deterministic synthetic analytics provider
// for local runs of the console.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/creditconsole/internal/adapters/provider/fake"
	"github.com/okian/creditconsole/internal/config"
	"github.com/okian/creditconsole/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	help := flag.Bool("help", false, "Show help")
	flag.Parse()
	if *help {
		os.Stdout.WriteString(usage)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(cfg.LogLevel)
	log := logger.Named("fake-provider")

	portfolio := fake.Generate(cfg.FakeProviderEntities, cfg.FakeProviderMonths, cfg.FakeProviderSeed, time.Now())
	handler := fake.NewServer(portfolio,
		fake.WithLogger(log),
		fake.WithLatency(cfg.FakeProviderLatency()),
	).Handler()

	srv := &http.Server{
		Addr:              cfg.FakeProviderAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "serving synthetic portfolio",
			logger.String("addr", cfg.FakeProviderAddr),
			logger.Int("entities", len(portfolio.Entities)),
			logger.Int("months", len(portfolio.Months)),
			logger.Uint64("seed", cfg.FakeProviderSeed),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
}

const usage = `fake-provider serves a synthetic clinic portfolio over the provider API.

Settings come from the console configuration (CONSOLE_ env vars):
  CONSOLE_FAKE_PROVIDER_ADDR        listen address (default :8000)
  CONSOLE_FAKE_PROVIDER_ENTITIES    number of clinics (default 12)
  CONSOLE_FAKE_PROVIDER_MONTHS      closed months of history (default 24)
  CONSOLE_FAKE_PROVIDER_SEED        generator seed (default 1)
  CONSOLE_FAKE_PROVIDER_LATENCY_MS  artificial latency per request
`
