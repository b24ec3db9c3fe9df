package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"salescycle/internal/core/id"
	"salescycle/internal/infrastructure/http/v1/dto"
)

var stampCmd = &cobra.Command{
	Use:   "stamp <invoiceID>",
	Short: "Submit a draft invoice to the tax authority and issue it",
	Args:  cobra.ExactArgs(1),
	RunE:  runStamp,
}

func init() {
	rootCmd.AddCommand(stampCmd)
}

func runStamp(cmd *cobra.Command, args []string) error {
	invoiceID, err := id.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid invoice id %q: %w", args[0], err)
	}

	inv, err := application.Service.StampInvoice(operationContext(cmd.Context()), invoiceID)
	if err != nil {
		return err
	}
	return printJSON(cmd, dto.FromInvoice(inv))
}
