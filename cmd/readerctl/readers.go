package main

import (
	"fmt"
	"text/tabwriter"

	"francoggm/terminal-payments-demo/internal/models"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

func readersCmd(factory serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readers",
		Short: "List or register terminal readers",
	}

	cmd.AddCommand(readersListCmd(factory))
	cmd.AddCommand(readersRegisterCmd(factory))

	return cmd
}

func readersListCmd(factory serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List readers known to the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := factory(0)
			if err != nil {
				return err
			}

			readers, err := svc.ListReaders(cmd.Context())
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				data, err := sonic.ConfigStd.MarshalIndent(readers, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			if len(readers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no readers registered")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tLOCATION\tSTATUS\tACTION")
			for _, r := range readers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Label, r.LocationID, r.Status, r.ActionStatus())
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func readersRegisterCmd(factory serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a reader with its pairing code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetString("code")
			label, _ := cmd.Flags().GetString("label")
			location, _ := cmd.Flags().GetString("location")

			svc, err := factory(0)
			if err != nil {
				return err
			}

			reader, err := svc.RegisterReader(cmd.Context(), models.RegisterReaderRequest{
				RegistrationCode: code,
				Label:            label,
				Location:         location,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", reader.ID, reader.Label)
			return nil
		},
	}

	cmd.Flags().String("code", "", "Registration code shown on the reader")
	cmd.Flags().String("label", "", "Reader label")
	cmd.Flags().String("location", "", "Location ID (tml_...)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}
