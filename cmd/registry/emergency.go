package main

import (
	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-registry/internal/emergency"
)

var emergencyReportInput emergency.ReportInput

var emergencyCmd = &cobra.Command{
	Use:   "emergency",
	Short: "Record emergency alerts",
}

var emergencyReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Record an emergency alert and print the services it notifies",
	Long: `Record an emergency alert. Requests for either police service notify both.

Example:
  registry emergency report --citizen C1 --service "Bomberos de Chile" --location "Av. Matta 1234" --reason "Incendio"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		e, err := a.emergencies.Report(cmd.Context(), emergencyReportInput)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), e)
	},
}

func init() {
	f := emergencyReportCmd.Flags()
	f.StringVar(&emergencyReportInput.CitizenKey, "citizen", "", "key of the caller")
	f.StringVar(&emergencyReportInput.Service, "service", "", "requested service")
	f.StringVar(&emergencyReportInput.Location, "location", "", "where help is needed")
	f.StringVar(&emergencyReportInput.Reason, "reason", "", "what happened")
	_ = emergencyReportCmd.MarkFlagRequired("service")
	_ = emergencyReportCmd.MarkFlagRequired("location")
	_ = emergencyReportCmd.MarkFlagRequired("reason")

	emergencyCmd.AddCommand(emergencyReportCmd)
	rootCmd.AddCommand(emergencyCmd)
}
