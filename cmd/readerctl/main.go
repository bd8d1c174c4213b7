package main

import (
	"fmt"
	"os"

	"francoggm/terminal-payments-demo/internal/app/provider"
	"francoggm/terminal-payments-demo/internal/app/storage"
	"francoggm/terminal-payments-demo/internal/app/terminal"
	"francoggm/terminal-payments-demo/internal/config"
	"francoggm/terminal-payments-demo/internal/logger"

	"github.com/spf13/cobra"
)

var Version = "dev"

// serviceFactory builds the terminal service; amount overrides the configured
// payment amount when positive.
type serviceFactory func(amount int64) (*terminal.Service, error)

func main() {
	if err := newRootCmd(stripeService).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(factory serviceFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "readerctl",
		Short:         "Manage terminal readers and run test payments",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(readersCmd(factory))
	rootCmd.AddCommand(payCmd(factory))

	return rootCmd
}

// stripeService talks to Stripe with the server's configuration. Capture
// claims live in process memory, so only this invocation is deduplicated.
func stripeService(amount int64) (*terminal.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(os.Stderr, false, cfg.Server.Debug)

	if amount > 0 {
		cfg.Payment.Amount = amount
	}

	p := provider.NewStripe(provider.StripeOptions{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		RateRPS:       cfg.Stripe.RateRPS,
		RateBurst:     cfg.Stripe.RateBurst,
		Logger:        log,
	})

	return terminal.NewService(p, storage.NewMemoryStore(), terminal.Options{
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
	}), nil
}
