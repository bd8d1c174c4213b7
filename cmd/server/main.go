package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"francoggm/terminal-payments-demo/internal/app/provider"
	"francoggm/terminal-payments-demo/internal/app/server"
	"francoggm/terminal-payments-demo/internal/app/server/handlers"
	"francoggm/terminal-payments-demo/internal/app/session"
	"francoggm/terminal-payments-demo/internal/app/storage"
	"francoggm/terminal-payments-demo/internal/app/terminal"
	"francoggm/terminal-payments-demo/internal/app/webhook"
	"francoggm/terminal-payments-demo/internal/app/workers"
	"francoggm/terminal-payments-demo/internal/app/workers/processors"
	"francoggm/terminal-payments-demo/internal/config"
	"francoggm/terminal-payments-demo/internal/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout           = 15 * time.Second
	providerMaxNetworkRetries = 2
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, os.Stdout)
	stop()

	if err != nil {
		os.Exit(1)
	}
}

// run wires the service and blocks until ctx is done. Deferred cleanup runs on
// every return path; the error has already been logged.
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	log := logger.New(out, cfg.IsProduction(), cfg.Server.Debug)

	cacheOpts := redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Cache.Host, cfg.Cache.Port),
		Password:     cfg.Cache.Password,
		DB:           0,
		PoolSize:     cfg.Workers.FollowUpCount + cfg.Workers.StorageCount + 10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	}

	rdb := redis.NewClient(&cacheOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("cache unreachable", "addr", cacheOpts.Addr, "error", err)
		return fmt.Errorf("ping cache %s: %w", cacheOpts.Addr, err)
	}

	// Worker queues
	followUpEventsCh := make(chan any, cfg.Workers.FollowUpBufferSize)
	storageEventsCh := make(chan any, cfg.Workers.StorageBufferSize)

	// Services
	stripeProvider := provider.NewStripe(provider.StripeOptions{
		SecretKey:         cfg.Stripe.SecretKey,
		WebhookSecret:     cfg.Stripe.WebhookSecret,
		RateRPS:           cfg.Stripe.RateRPS,
		RateBurst:         cfg.Stripe.RateBurst,
		MaxNetworkRetries: providerMaxNetworkRetries,
		Logger:            log,
	})
	storageService := storage.NewStorageService(rdb)
	terminalService := terminal.NewService(stripeProvider, storageService, terminal.Options{
		Amount:          cfg.Payment.Amount,
		Currency:        cfg.Payment.Currency,
		SimulatedReader: cfg.Stripe.SimulatedReader,
		Poll: terminal.PollConfig{
			InitialInterval: cfg.Poll.InitialInterval,
			MaxInterval:     cfg.Poll.MaxInterval,
			Timeout:         cfg.Poll.Timeout,
			MaxAttempts:     cfg.Poll.MaxAttempts,
		},
		Logger: log,
	})
	receiver := webhook.NewReceiver(stripeProvider, storageService, followUpEventsCh, log)

	// Worker processors
	captureProcessor := processors.NewCaptureProcessor(terminalService, storageService, storageEventsCh)
	storageProcessor := processors.NewStorageProcessor(storageService)

	// Worker pools
	followUpPool := workers.NewWorkerPool("followup", cfg.Workers.FollowUpCount, cfg.Workers.MaxRetries, followUpEventsCh, captureProcessor, log)
	storagePool := workers.NewWorkerPool("storage", cfg.Workers.StorageCount, cfg.Workers.MaxRetries, storageEventsCh, storageProcessor, log)

	g, gctx := errgroup.WithContext(ctx)

	// Start workers in order of processing
	storagePool.StartWorkers(gctx)
	followUpPool.StartWorkers(gctx)

	sessions := session.NewStore(cfg.Session.TTL, cfg.IsProduction())
	h := handlers.NewHandlers(cfg, terminalService, receiver, storageService, sessions, log)
	srv := server.NewServer(cfg, h, log)

	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if err != nil {
		log.Error("server stopped", "error", err)
	}

	followUpPool.Wait()
	storagePool.Wait()

	return err
}
