package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vjlink/internal/panel"
)

var (
	panelConfigPath string
	panelSchemaPath string
	panelLogFile    string
)

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Run the interactive control panel",
	Long:  "panel opens the operator TUI that sends scene, effect, and system commands to a receiver and shows its acknowledgements.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(panelConfigPath, panelSchemaPath)
		if err != nil {
			return err
		}

		// The TUI owns the terminal, so logs go to a file or nowhere.
		log, cleanup, err := panelLogger(panelLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		tr, err := newControlTransport(cfg, log)
		if err != nil {
			return err
		}
		defer tr.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := panel.New(cfg, tr, log)
		defer p.Close()

		go func() {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			<-sigs
			cancel()
		}()

		p.Run(ctx)
		return nil
	},
}

func panelLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { f.Close() }, nil
}

func init() {
	panelCmd.Flags().StringVar(&panelConfigPath, "config", "", "Path to installation configuration YAML")
	panelCmd.Flags().StringVar(&panelSchemaPath, "schema", "schemas/vjlink.cue", "Path to CUE schema file")
	panelCmd.Flags().StringVar(&panelLogFile, "log-file", "", "Path to write panel logs (the TUI occupies STDOUT)")
}
