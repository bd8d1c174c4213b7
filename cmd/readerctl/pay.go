package main

import (
	"errors"
	"fmt"

	"francoggm/terminal-payments-demo/internal/app/terminal"

	"github.com/spf13/cobra"
)

func payCmd(factory serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Run one payment on a reader and capture it on success",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			readerID, _ := cmd.Flags().GetString("reader")
			amount, _ := cmd.Flags().GetInt64("amount")
			if amount < 0 {
				return fmt.Errorf("--amount must be positive, got %d", amount)
			}

			svc, err := factory(amount)
			if err != nil {
				return err
			}

			reader, _, err := svc.ResolveReader(cmd.Context(), readerID)
			if err != nil {
				return err
			}

			result, err := svc.SimulatePayment(cmd.Context(), reader.ID)
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "payment_intent=%s reader=%s outcome=%s captured=%t\n",
					result.IntentID, result.ReaderID, result.Outcome, result.Captured)
				if result.FailureCode != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "failure: %s %s\n", result.FailureCode, result.FailureMessage)
				}
			}
			if errors.Is(err, terminal.ErrPollTimeout) {
				return fmt.Errorf("reader did not finish: %w", err)
			}
			return err
		},
	}

	cmd.Flags().String("reader", "", "Reader ID; defaults to the first listed reader")
	cmd.Flags().Int64("amount", 0, "Amount in minor units; defaults to PAYMENT_AMOUNT")

	return cmd
}
