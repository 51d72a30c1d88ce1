package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vjlink/internal/cuesheet"
	"vjlink/internal/logging"
	"vjlink/internal/protocol"
	"vjlink/internal/transport"
)

var (
	sheetConfigPath string
	sheetSchemaPath string
	sheetTick       time.Duration
)

var cuesheetCmd = &cobra.Command{
	Use:   "cuesheet <name-or-path>",
	Short: "Drive a receiver through a scripted show",
	Long:  "cuesheet runs a show headlessly: it fires each phase's commands at a receiver and advances phases on elapsed time or reported quality level. Pass a built-in sheet name or a path to a YAML file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheet, err := resolveSheet(args[0])
		if err != nil {
			return err
		}
		if len(sheet.Phases) == 0 {
			return fmt.Errorf("cue sheet %q has no phases", args[0])
		}

		cfg, err := loadConfig(sheetConfigPath, sheetSchemaPath)
		if err != nil {
			return err
		}
		log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

		tr, err := newControlTransport(cfg, log)
		if err != nil {
			return err
		}
		defer tr.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			<-sigs
			cancel()
		}()

		return runSheet(ctx, sheet, tr, log, sheetTick)
	},
}

// resolveSheet accepts either a built-in sheet name or a YAML file path.
func resolveSheet(arg string) (*cuesheet.Sheet, error) {
	if s, ok := cuesheet.BuiltIn()[arg]; ok {
		return &s, nil
	}
	return cuesheet.Load(arg)
}

// runSheet enters the first phase and advances until a phase without
// triggers is reached or ctx is done. Elapsed seconds within the current
// phase feed time_elapsed triggers; performance_stats acks from the receiver
// feed level_reached triggers.
func runSheet(ctx context.Context, sheet *cuesheet.Sheet, tr transport.Transport, log *slog.Logger, tick time.Duration) error {
	levels := make(chan int, 16)
	tr.OnMessage(func(m protocol.Message) {
		if m.Type == protocol.TypePerformanceStats && m.Level != nil {
			select {
			case levels <- *m.Level:
			default:
			}
		}
	})

	current := sheet.Phases[0].Name
	phaseStart := time.Now()
	enter := func(name string) bool {
		p := sheet.Phase(name)
		if p == nil {
			log.Warn("cue sheet names unknown phase", "phase", name)
			return false
		}
		log.Info("entering phase", "phase", p.Name, "scene", p.Scene)
		for _, m := range p.Commands() {
			tr.Send(m)
		}
		current = name
		phaseStart = time.Now()
		return true
	}
	terminal := func() bool {
		p := sheet.Phase(current)
		return p == nil || len(p.Triggers) == 0
	}

	if !enter(current) {
		return fmt.Errorf("cue sheet has no valid opening phase")
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		if terminal() {
			log.Info("show finished", "phase", current)
			return nil
		}
		var ev cuesheet.Event
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ev = cuesheet.Event{Type: "time_elapsed", Value: int(time.Since(phaseStart).Seconds())}
		case lvl := <-levels:
			ev = cuesheet.Event{Type: "level_reached", Value: lvl}
		}
		if next, ok := sheet.NextPhase(current, ev); ok {
			if !enter(next) {
				return fmt.Errorf("phase %q triggers unknown phase %q", current, next)
			}
		}
	}
}

func init() {
	cuesheetCmd.Flags().StringVar(&sheetConfigPath, "config", "", "Path to installation configuration YAML")
	cuesheetCmd.Flags().StringVar(&sheetSchemaPath, "schema", "schemas/vjlink.cue", "Path to CUE schema file")
	cuesheetCmd.Flags().DurationVar(&sheetTick, "tick", time.Second, "Show clock resolution (e.g. 500ms, 2s)")
}
