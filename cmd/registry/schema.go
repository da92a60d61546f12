package main

import (
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-registry/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the registry schema",
}

var schemaEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create missing tables and indexes",
	Long: `Create every missing registry table and index in one transaction.
Safe to run repeatedly.

Example:
  registry schema ensure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		if err := schema.Ensure(cmd.Context(), a.db); err != nil {
			return err
		}
		a.sugar.Info("schema ensured")
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaEnsureCmd)
	rootCmd.AddCommand(schemaCmd)
}
