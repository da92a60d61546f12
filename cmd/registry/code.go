package main

import (
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-registry/internal/payment"
)

var codeIssueInput payment.IssueInput

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Manage payment codes",
}

var codeIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a single-use payment code to a citizen",
	Long: `Issue a single-use payment code. The citizen must hold an identity.

Example:
  registry code issue --citizen C1 --amount 50000 --description "Vehicle registration" --issuer op-1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		pc, err := a.codes.IssueCode(cmd.Context(), codeIssueInput)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), pc)
	},
}

func init() {
	f := codeIssueCmd.Flags()
	f.StringVar(&codeIssueInput.CitizenKey, "citizen", "", "citizen key")
	f.Int64Var(&codeIssueInput.Amount, "amount", 0, "amount in whole pesos")
	f.StringVar(&codeIssueInput.Description, "description", "", "what the code pays for")
	f.StringVar(&codeIssueInput.IssuerID, "issuer", "", "operator id")
	_ = codeIssueCmd.MarkFlagRequired("citizen")
	_ = codeIssueCmd.MarkFlagRequired("amount")
	_ = codeIssueCmd.MarkFlagRequired("issuer")

	codeCmd.AddCommand(codeIssueCmd)
	rootCmd.AddCommand(codeCmd)
}
