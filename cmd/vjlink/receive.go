package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vjlink/internal/admin"
	"vjlink/internal/logging"
	"vjlink/internal/receiver"
)

var (
	recvConfigPath string
	recvSchemaPath string
	recvAdminAddr  string
	recvLogFile    string
	recvPrintOnly  bool
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Run the visual-side receiver",
	Long:  "receive starts the visual-side endpoint: it executes incoming control commands, tracks reported frame rate, and walks the quality ladder.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(recvConfigPath, recvSchemaPath)
		if err != nil {
			return err
		}
		log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

		writer, cleanup, err := newStatWriters(cfg, recvPrintOnly, recvLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		tr, ws := newReceiverTransport(cfg, log)
		defer tr.Close()

		rx := receiver.New(cfg, tr, writer, writer, nil, nil, log)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		srv := admin.NewServer(rx, ws, log)
		go func() {
			log.Info("admin server listening", "addr", recvAdminAddr)
			if err := srv.Start(ctx, recvAdminAddr); err != nil && err != http.ErrServerClosed {
				log.Error("admin server failed", "error", err)
				os.Exit(1)
			}
		}()

		go rx.Run(ctx)
		log.Info("receiver running",
			"installation", cfg.InstallationID,
			"channel", cfg.Channel,
			"backend", cfg.Transport.Backend)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		cancel()
		log.Info("receiver stopped")
		return nil
	},
}

func init() {
	receiveCmd.Flags().StringVar(&recvConfigPath, "config", "", "Path to installation configuration YAML")
	receiveCmd.Flags().StringVar(&recvSchemaPath, "schema", "schemas/vjlink.cue", "Path to CUE schema file")
	receiveCmd.Flags().StringVar(&recvAdminAddr, "admin", ":8080", "Admin server listen address")
	receiveCmd.Flags().StringVar(&recvLogFile, "log-file", "", "Path to export performance stats (JSONL)")
	receiveCmd.Flags().BoolVar(&recvPrintOnly, "print-only", false, "Print stats to STDOUT instead of writing to DB")
}
