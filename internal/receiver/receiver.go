// Receiver wires the visual side together: transport, connection monitor,
// command dispatch, FPS processing, the degradation ladder, and stat writers.
package receiver

import (
	"context"
	"log/slog"
	"time"

	"vjlink/internal/config"
	"vjlink/internal/conn"
	"vjlink/internal/dispatch"
	"vjlink/internal/fpsmeter"
	"vjlink/internal/ladder"
	"vjlink/internal/protocol"
	"vjlink/internal/stats"
	"vjlink/internal/transport"
)

// MatrixDisplay renders a matrix message locally. The displayed ack is only
// sent after Show returns, so the remote side can rely on ack-after-effect.
type MatrixDisplay interface {
	Show(text string, roll int) error
}

// LogDisplay is the headless MatrixDisplay: it logs the message.
type LogDisplay struct {
	Log *slog.Logger
}

func (d LogDisplay) Show(text string, roll int) error {
	d.Log.Info("matrix message", "message", text, "roll", roll)
	return nil
}

// LogStage is the headless rendering stage: quality changes are logged, not
// rendered. A real stage is injected when the receiver drives actual output.
type LogStage struct {
	Log *slog.Logger
}

func (s LogStage) SetPixelRatio(r float64) error {
	s.Log.Debug("stage pixel ratio", "ratio", r)
	return nil
}

func (s LogStage) SetShadows(on bool) error {
	s.Log.Debug("stage shadows", "enabled", on)
	return nil
}

func (s LogStage) SetPostProcessing(on bool) error {
	s.Log.Debug("stage post-processing", "enabled", on)
	return nil
}

func (s LogStage) SetParticleMultiplier(m float64) error {
	s.Log.Debug("stage particle multiplier", "multiplier", m)
	return nil
}

// Status is a diagnostic snapshot served by the admin endpoint.
type Status struct {
	InstallationID string                     `json:"installation_id"`
	Connected      bool                       `json:"connected"`
	Scene          string                     `json:"scene"`
	Effects        map[string]dispatch.Effect `json:"effects"`
	Level          int                        `json:"level"`
	LevelName      string                     `json:"level_name"`
	Pinned         bool                       `json:"pinned"`
	EffectiveFPS   float64                    `json:"effective_fps"`
	SampleCount    int                        `json:"sample_count"`
}

// Receiver is the visual-side orchestrator.
type Receiver struct {
	cfg     *config.Config
	tr      transport.Transport
	monitor *conn.Monitor
	table   *dispatch.Table
	meter   *fpsmeter.Processor
	ladder  *ladder.Ladder
	perfW   stats.PerfWriter
	transW  stats.TransitionWriter
	display MatrixDisplay
	log     *slog.Logger

	now func() time.Time
}

// New builds a receiver on the given transport. perfW, transW, display, and
// stage may be nil; nil display and stage fall back to the logging variants.
func New(cfg *config.Config, tr transport.Transport, perfW stats.PerfWriter, transW stats.TransitionWriter, display MatrixDisplay, stage ladder.Stage, log *slog.Logger) *Receiver {
	if log == nil {
		log = slog.Default()
	}
	if display == nil {
		display = LogDisplay{Log: log}
	}
	if stage == nil {
		stage = LogStage{Log: log}
	}

	r := &Receiver{
		cfg:     cfg,
		tr:      tr,
		perfW:   perfW,
		transW:  transW,
		display: display,
		log:     log,
		now:     time.Now,
	}

	r.table = dispatch.New(cfg.Scenes, cfg.Effects, log)
	r.meter = fpsmeter.New(fpsmeter.Config{
		Window:     cfg.FPS.Window(),
		Alpha:      cfg.FPS.Alpha,
		MinSamples: cfg.FPS.MinSamples,
	})
	r.ladder = ladder.New(ladderConfig(cfg), stage, r.onTransition, log)
	r.monitor = conn.New(tr, cfg.Connection.Timeout(), func(up bool) {
		r.log.Info("panel link", "connected", up)
	}, log)

	r.table.Register(protocol.TypeMatrixMessage, r.handleMatrixMessage)
	r.table.Register(protocol.TypePerformanceUpdate, r.handlePerformanceUpdate)
	r.table.Register(protocol.TypePerformanceMode, r.handlePerformanceMode)
	r.table.Register(protocol.TypeEmergencyStop, r.handleEmergencyStop)
	r.table.Register(protocol.TypeSystemReset, r.handleSystemReset)
	r.table.Register(protocol.TypeSystemReload, r.handleSystemReload)

	tr.OnMessage(r.handle)
	return r
}

func ladderConfig(cfg *config.Config) ladder.Config {
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

// Run applies the current quality level to the stage and keeps the
// connection monitor ticking until ctx is done.
func (r *Receiver) Run(ctx context.Context) {
	r.ladder.Apply()
	r.monitor.Run(ctx)
}

// handle is the single inbound path for every transport message.
func (r *Receiver) handle(m protocol.Message) {
	if m.Liveness() {
		r.monitor.OnLiveness()
	}
	if ack := r.table.Dispatch(m); ack != nil {
		ack.Stamp()
		r.tr.Send(*ack)
	}
}

func (r *Receiver) handleMatrixMessage(m protocol.Message) *protocol.Message {
	if m.Text == "" {
		return nil
	}
	if err := r.display.Show(m.Text, m.Roll); err != nil {
		r.log.Error("matrix display", "error", err)
	}
	// the ack goes out only after the display action completed
	ack := protocol.New(protocol.TypeMatrixMessageDisplayed)
	ack.Text = m.Text
	return &ack
}

func (r *Receiver) handlePerformanceUpdate(m protocol.Message) *protocol.Message {
	if m.FPS == nil {
		return nil
	}
	now := r.now()
	r.meter.Ingest(*m.FPS, now)
	eff := r.meter.EffectiveFPS()
	r.ladder.Observe(eff)

	if r.perfW != nil {
		row := stats.PerfRow{
			InstallationID: r.cfg.InstallationID,
			Channel:        r.cfg.Channel,
			FPS:            *m.FPS,
			EffectiveFPS:   eff,
			Level:          int(r.ladder.Level()),
			Timestamp:      now,
		}
		if m.Memory != nil {
			row.Memory = *m.Memory
		}
		if m.DOMNodes != nil {
			row.DOMNodes = *m.DOMNodes
		}
		if err := r.perfW.Write(row); err != nil {
			r.log.Error("perf write", "error", err)
		}
	}

	ack := protocol.New(protocol.TypePerformanceStats)
	ack.FPS = protocol.Float(eff)
	ack.Level = protocol.Int(int(r.ladder.Level()))
	return &ack
}

func (r *Receiver) handlePerformanceMode(m protocol.Message) *protocol.Message {
	switch m.Mode {
	case protocol.ModeLow:
		r.ladder.Pin(ladder.LevelLow)
	case protocol.ModeHigh:
		r.ladder.Pin(ladder.LevelFull)
	case protocol.ModeAuto:
		r.ladder.Unpin()
	default:
		r.log.Debug("unknown performance mode", "mode", m.Mode)
		return nil
	}
	r.log.Info("performance mode", "mode", m.Mode)
	ack := protocol.New(protocol.TypePerformanceModeUpdated)
	ack.Mode = m.Mode
	return &ack
}

func (r *Receiver) handleEmergencyStop(protocol.Message) *protocol.Message {
	r.log.Warn("emergency stop")
	r.table.DisableAll()
	r.ladder.Pin(ladder.LevelMinimal)
	return nil
}

func (r *Receiver) handleSystemReset(protocol.Message) *protocol.Message {
	r.log.Info("system reset")
	r.table.Reset()
	r.meter.Reset()
	r.ladder.Reset()
	return nil
}

func (r *Receiver) handleSystemReload(protocol.Message) *protocol.Message {
	// restarting the process is the operator's call
	r.log.Info("system reload requested")
	return nil
}

func (r *Receiver) onTransition(tr ladder.Transition) {
	if r.transW == nil {
		return
	}
	row := stats.TransitionRow{
		InstallationID: r.cfg.InstallationID,
		Channel:        r.cfg.Channel,
		FromLevel:      int(tr.From),
		ToLevel:        int(tr.To),
		Cause:          string(tr.Cause),
		FPS:            tr.FPS,
		Timestamp:      tr.At,
	}
	if err := r.transW.WriteTransition(row); err != nil {
		r.log.Error("transition write", "error", err)
	}
}

// Status returns a diagnostic snapshot.
func (r *Receiver) Status() Status {
	level := r.ladder.Level()
	return Status{
		InstallationID: r.cfg.InstallationID,
		Connected:      r.monitor.Connected(),
		Scene:          r.table.Scene(),
		Effects:        r.table.Effects(),
		Level:          int(level),
		LevelName:      level.String(),
		Pinned:         r.ladder.Pinned(),
		EffectiveFPS:   r.meter.EffectiveFPS(),
		SampleCount:    r.meter.SampleCount(),
	}
}

// History returns the recorded quality transitions.
func (r *Receiver) History() []ladder.Transition {
	return r.ladder.History()
}

// ForceLevel pins the ladder to a level, for operator intervention.
func (r *Receiver) ForceLevel(level int) {
	r.ladder.Pin(ladder.Level(level))
}

// ResumeAuto re-enables automatic quality movement.
func (r *Receiver) ResumeAuto() {
	r.ladder.Unpin()
}

// EmergencyStop disables all effects and drops to minimal quality.
func (r *Receiver) EmergencyStop() {
	r.handleEmergencyStop(protocol.Message{})
}
