package main

import (
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage justice records",
}

var recordsExpungeCmd = &cobra.Command{
	Use:   "expunge CITIZEN_KEY",
	Short: "Delete every arrest and fine of a citizen",
	Long: `Delete every arrest and fine of a citizen in one transaction and print what was removed.
The citizen does not need to hold an identity.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		out, err := a.justice.ExpungeAll(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	recordsCmd.AddCommand(recordsExpungeCmd)
	rootCmd.AddCommand(recordsCmd)
}
