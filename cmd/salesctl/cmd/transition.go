package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"salescycle/internal/core/id"
	"salescycle/internal/domain/workflow"
)

var transitionCmd = &cobra.Command{
	Use:   "transition <entityType> <id> <state>",
	Short: "Move a document to another state",
	Long: `Move a document to another state. Entity types are quotation, order,
delivery, invoice and credit_note. Invoices reach ISSUED only through stamp.`,
	Example: `  salesctl transition order 5b0e...c1 CONFIRMED
  salesctl transition invoice 9a41...7d VOID`,
	Args: cobra.ExactArgs(3),
	RunE: runTransition,
}

func init() {
	rootCmd.AddCommand(transitionCmd)
}

func runTransition(cmd *cobra.Command, args []string) error {
	entityType, err := workflow.ParseEntityType(strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	docID, err := id.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[1], err)
	}

	res, err := application.Service.Transition(operationContext(cmd.Context()), entityType, docID, workflow.State(strings.ToUpper(args[2])))
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}
