package main

import (
	"github.com/spf13/cobra"
)

var citizenExpungeCodes bool

var citizenCmd = &cobra.Command{
	Use:   "citizen",
	Short: "Manage citizen identities",
}

var citizenExpungeCmd = &cobra.Command{
	Use:   "expunge CITIZEN_KEY",
	Short: "Delete a citizen's identity",
	Long: `Delete a citizen's identity and print the removed row.

Licenses, vehicles and properties must be removed first. Payment codes not
backing a registered asset are deleted beforehand when --codes is set.

Example:
  registry citizen expunge C1 --codes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		if citizenExpungeCodes {
			if _, err := a.codes.DeleteCodes(cmd.Context(), args[0]); err != nil {
				return err
			}
		}
		row, err := a.identities.ExpungeIdentity(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), row)
	},
}

func init() {
	citizenExpungeCmd.Flags().BoolVar(&citizenExpungeCodes, "codes", false, "delete unreferenced payment codes first")
	citizenCmd.AddCommand(citizenExpungeCmd)
	rootCmd.AddCommand(citizenCmd)
}
