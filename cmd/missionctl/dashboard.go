package main

import (
	"github.com/spf13/cobra"

	"droneops-mission/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for the mission tables",
	Long:  "dashboard renders Grafana dashboard JSON querying the readings and event tables. GREPTIMEDB_DATASOURCE_UID must name the Grafana datasource.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cancel, cfg, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer cancel()
		tables := dashboard.DefaultTables()
		if cfg.Greptime.Table != "" {
			tables.Readings = cfg.Greptime.Table
		}
		field := "co2.CO2"
		if cfg.Coordinator != nil {
			field = cfg.Coordinator.Field
		}
		return dashboard.Render(dashboardOut, dashboard.Data{MissionID: cfg.MissionID, Field: field, Tables: tables})
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
}
