package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajitpdevops/rediguard/internal/adapters/http/api"
	"github.com/ajitpdevops/rediguard/internal/adapters/mq/worker"
	"github.com/ajitpdevops/rediguard/internal/app"
	"github.com/ajitpdevops/rediguard/internal/config"
	"github.com/ajitpdevops/rediguard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Get()

	svc, err := app.NewService(ctx, cfg)
	if err != nil {
		log.Error(ctx, "service startup failed", logger.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			log.Error(ctx, "service close failed", logger.Error(err))
		}
	}()

	// Stream consumers behind the ingestion endpoint.
	pool := worker.NewPool(svc.Stream(), svc.Pipeline(),
		worker.WithWorkers(cfg.WorkerCount),
		worker.WithConsumerName(cfg.ConsumerName),
		worker.WithClaimIdle(time.Duration(cfg.StreamClaimMinIdleMS)*time.Millisecond),
	)
	go pool.Run(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "worker shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "stopped")
}
