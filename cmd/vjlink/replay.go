package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"vjlink/internal/config"
	"vjlink/internal/fpsmeter"
	"vjlink/internal/ladder"
	"vjlink/internal/logging"
	"vjlink/internal/stats"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
	replaySimulate  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a performance log file",
	Long:  "replay feeds performance rows from a log file back into GreptimeDB or STDOUT. With --simulate, the rows are re-run through a fresh FPS meter and quality ladder, so the written rows and transitions reflect the current tuning instead of the recorded one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg := config.Default()
		base, err := baseStatWriter(cfg, replayPrintOnly)
		if err != nil {
			return err
		}
		var writer stats.PerfWriter = base
		if replaySimulate {
			log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			writer = newSimulateWriter(cfg, base, log)
		}
		return stats.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

// simulateWriter re-runs replayed rows through a fresh meter and ladder.
// Sample timestamps come from the log, but the ladder's delay and window
// timing follow the playback clock, so results are faithful at speed 1.
type simulateWriter struct {
	base  statWriter
	cfg   *config.Config
	meter *fpsmeter.Processor
	lad   *ladder.Ladder
}

func newSimulateWriter(cfg *config.Config, base statWriter, log *slog.Logger) *simulateWriter {
	s := &simulateWriter{base: base, cfg: cfg}
	s.meter = fpsmeter.New(fpsmeter.Config{
		Window:     cfg.FPS.Window(),
		Alpha:      cfg.FPS.Alpha,
		MinSamples: cfg.FPS.MinSamples,
	})
	s.lad = ladder.New(simulateLadderConfig(cfg), nil, func(tr ladder.Transition) {
		_ = base.WriteTransition(stats.TransitionRow{
			InstallationID: cfg.InstallationID,
			Channel:        cfg.Channel,
			FromLevel:      int(tr.From),
			ToLevel:        int(tr.To),
			Cause:          string(tr.Cause),
			FPS:            tr.FPS,
			Timestamp:      tr.At,
		})
	}, log)
	return s
}

func (s *simulateWriter) Write(row stats.PerfRow) error {
	s.meter.Ingest(row.FPS, row.Timestamp)
	s.lad.Observe(s.meter.EffectiveFPS())
	row.EffectiveFPS = s.meter.EffectiveFPS()
	row.Level = int(s.lad.Level())
	return s.base.Write(row)
}

func simulateLadderConfig(cfg *config.Config) ladder.Config {
	var lc ladder.Config
	for i, b := range cfg.Ladder.Bands {
		if i >= len(lc.Bands) {
			break
		}
		lc.Bands[i] = ladder.Band{MinFPS: b.MinFPS, MaxFPS: b.MaxFPS}
	}
	lc.DegradationBuffer = cfg.Ladder.DegradationBuffer
	lc.DegradationDelay = cfg.Ladder.DegradationDelay()
	lc.RecoveryThreshold = cfg.Ladder.RecoveryThreshold
	lc.RecoveryWindow = cfg.Ladder.RecoveryWindow()
	lc.RecoveryCancelSamples = cfg.Ladder.RecoveryCancelSamples
	lc.HistoryLimit = cfg.Ladder.HistoryLimit
	return lc
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to performance log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print stats to STDOUT instead of writing to DB")
	replayCmd.Flags().BoolVar(&replaySimulate, "simulate", false, "Re-run rows through a fresh FPS meter and quality ladder (use --speed 1 for faithful timing)")
	replayCmd.MarkFlagRequired("input")
}
