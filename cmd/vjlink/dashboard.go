package main

import (
	"github.com/spf13/cobra"

	"vjlink/internal/dashboard"
)

var dashboardOutDir string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards from templates",
	Long:  "dashboard renders the Grafana dashboard templates with values from the environment and writes the JSON to the output directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return dashboard.Render(dashboardOutDir)
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOutDir, "out", "build", "Output directory for rendered dashboards")
}
