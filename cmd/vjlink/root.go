package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vjlink/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "vjlink",
	Short: "VJ control link toolkit",
	Long:  "vjlink connects a control panel to a visual receiver over swappable transports, executes control commands, and adapts rendering quality to the measured frame rate.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(panelCmd)
	rootCmd.AddCommand(cuesheetCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// loadConfig loads and validates the installation config, falling back to
// built-in defaults when no path is given.
func loadConfig(configPath, schemaPath string) (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath, schemaPath)
}
