package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"salescycle/internal/domain/sales"
	"salescycle/internal/infrastructure/http/v1/dto"
)

var consolidateIssueDate string

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <deliveryID>...",
	Short: "Bill deliveries of one client in a single draft invoice",
	Example: `  salesctl consolidate 5b0e...c1 9a41...7d
  salesctl consolidate 5b0e...c1 --issue-date 2026-03-31`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
	consolidateCmd.Flags().StringVar(&consolidateIssueDate, "issue-date", "", "invoice issue date YYYY-MM-DD (default today)")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	ids, err := dto.ParseIDs(args)
	if err != nil {
		return err
	}
	in := sales.ConsolidateInput{DeliveryIDs: ids}
	if consolidateIssueDate != "" {
		if in.IssueDate, err = time.Parse(time.DateOnly, consolidateIssueDate); err != nil {
			return fmt.Errorf("invalid --issue-date: %w", err)
		}
	}

	res, err := application.Service.ConsolidateDeliveriesIntoInvoice(operationContext(cmd.Context()), in)
	if err != nil {
		return err
	}
	return printJSON(cmd, dto.ConsolidateResponse{Invoice: dto.FromInvoice(res.Invoice), Warnings: res.Warnings})
}
