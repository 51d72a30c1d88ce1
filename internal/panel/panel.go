// Control panel TUI: sends scene/effect/color/matrix commands over the
// transport and displays connection liveness, the remote quality level, and
// the dice scheduler's pending state.
package panel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"vjlink/internal/config"
	"vjlink/internal/conn"
	"vjlink/internal/dice"
	"vjlink/internal/protocol"
	"vjlink/internal/transport"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// connMsg reports a connection state change.
type connMsg struct{ up bool }

// statsMsg carries the remote performance reply.
type statsMsg struct {
	fps   float64
	level int
}

// matrixMsg updates the matrix readout.
type matrixMsg struct{ display string }

// sceneMsg confirms a remote scene change.
type sceneMsg struct{ scene string }

// modeMsg confirms a performance mode change.
type modeMsg struct{ mode string }

// Panel owns the TUI program and the panel-side protocol state.
type Panel struct {
	program    teaProgram
	cfg        *config.Config
	tr         transport.Transport
	monitor    *conn.Monitor
	dice       *dice.Scheduler
	log        *slog.Logger
	done       chan struct{}
	sendSignal atomic.Bool
}

// New starts a bubbletea program and returns the panel.
func New(cfg *config.Config, tr transport.Transport, log *slog.Logger) *Panel {
	if log == nil {
		log = slog.Default()
	}
	p := &Panel{cfg: cfg, tr: tr, log: log, done: make(chan struct{})}
	p.sendSignal.Store(true)

	m := newPanelModel(cfg, p.send)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	p.program = prog

	p.monitor = conn.New(tr, cfg.Connection.Timeout(), func(up bool) {
		p.program.Send(connMsg{up: up})
	}, log)
	p.dice = dice.New(dice.Config{
		Period:    cfg.Dice.Period(),
		Threshold: cfg.Dice.Threshold,
		Pool:      cfg.Dice.Pool,
	}, nil, log)

	tr.OnMessage(p.handleInbound)

	go func() {
		_ = prog.Start()
		close(p.done)
		if p.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return p
}

// Run announces the panel, then keeps the liveness monitor and the dice
// countdown ticking until ctx is done or the TUI quits.
func (p *Panel) Run(ctx context.Context) {
	p.send(protocol.New(protocol.TypeControlConnect))
	go p.monitor.Run(ctx)
	go p.runDice(ctx)
	select {
	case <-ctx.Done():
	case <-p.done:
	}
}

func (p *Panel) runDice(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Dice.Period())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if m := p.dice.Roll(); m != nil {
				p.send(*m)
				p.program.Send(matrixMsg{display: p.dice.Display()})
			}
		case <-ctx.Done():
			return
		}
	}
}

// send stamps and transmits a message, logs it, and tracks matrix sends for
// the pending display.
func (p *Panel) send(m protocol.Message) {
	m.Stamp()
	if m.Type == protocol.TypeMatrixMessage {
		p.dice.Track(m.Text)
		p.program.Send(matrixMsg{display: p.dice.Display()})
	}
	p.tr.Send(m)
	p.program.Send(logMsg{line: formatOutbound(m)})
}

// handleInbound is the single entry point for remote messages.
func (p *Panel) handleInbound(m protocol.Message) {
	if m.Liveness() {
		p.monitor.OnLiveness()
	}
	switch m.Type {
	case protocol.TypeMatrixMessageDisplayed:
		p.dice.OnAck(m)
		p.program.Send(matrixMsg{display: p.dice.Display()})
	case protocol.TypePerformanceStats:
		if m.FPS != nil && m.Level != nil {
			p.program.Send(statsMsg{fps: *m.FPS, level: *m.Level})
		}
	case protocol.TypeSceneChanged:
		p.program.Send(sceneMsg{scene: m.Scene})
	case protocol.TypePerformanceModeUpdated:
		p.program.Send(modeMsg{mode: m.Mode})
	}
	p.program.Send(logMsg{line: formatInbound(m)})
}

// Close shuts down the TUI program and waits for cleanup.
func (p *Panel) Close() error {
	p.sendSignal.Store(false)
	if p.program != nil {
		p.program.Send(tea.Quit())
	}
	if p.done != nil {
		<-p.done
	}
	return p.tr.Close()
}

func formatOutbound(m protocol.Message) string {
	return fmt.Sprintf("%s[%s]%s %s→%s %s%s%s%s",
		colorGray, time.Now().Format(time.RFC3339), colorReset,
		colorCyan, colorReset,
		colorBlue, m.Type, colorReset, payloadSummary(m))
}

func formatInbound(m protocol.Message) string {
	return fmt.Sprintf("%s[%s]%s %s←%s %s%s%s%s",
		colorGray, time.Now().Format(time.RFC3339), colorReset,
		colorGreen, colorReset,
		colorMagenta, m.Type, colorReset, payloadSummary(m))
}

func payloadSummary(m protocol.Message) string {
	var parts []string
	if m.Scene != "" {
		parts = append(parts, "scene="+m.Scene)
	}
	if m.Effect != "" {
		parts = append(parts, "effect="+m.Effect)
	}
	if m.Enabled != nil {
		parts = append(parts, fmt.Sprintf("enabled=%t", *m.Enabled))
	}
	if m.Intensity != nil {
		parts = append(parts, fmt.Sprintf("intensity=%.0f", *m.Intensity))
	}
	if m.Property != "" && m.Value != nil {
		parts = append(parts, fmt.Sprintf("%s=%.0f", m.Property, *m.Value))
	}
	if m.Text != "" {
		parts = append(parts, "message="+m.Text)
	}
	if m.Roll != 0 {
		parts = append(parts, fmt.Sprintf("roll=%d", m.Roll))
	}
	if m.FPS != nil {
		parts = append(parts, fmt.Sprintf("fps=%.1f", *m.FPS))
	}
	if m.Level != nil {
		parts = append(parts, fmt.Sprintf("level=S%d", *m.Level))
	}
	if m.Mode != "" {
		parts = append(parts, "mode="+m.Mode)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

// effectKeys maps a key to the effect it toggles, in registry order.
var effectKeys = []string{"g", "b", "i", "x"}

type panelModel struct {
	cfg  *config.Config
	send func(protocol.Message)

	table        table.Model
	vp           viewport.Model
	logs         []string
	wrap         bool
	autoscroll   bool
	height       int
	headerHeight int

	connected  bool
	scene      string
	effects    map[string]bool
	lastEffect string
	intensity  float64
	remoteFPS  float64
	remoteLvl  int
	haveStats  bool
	matrix     string
	mode       string

	input       textinput.Model
	matrixInput bool
	colorInput  bool
	help        bool
}

func newPanelModel(cfg *config.Config, send func(protocol.Message)) panelModel {
	cols := []table.Column{
		{Title: "Key", Width: 6},
		{Title: "Action", Width: 26},
		{Title: "Key", Width: 6},
		{Title: "Action", Width: 26},
	}
	rows := []table.Row{
		{"1-4", "scene " + strings.Join(cfg.Scenes, "/"), "g/b/i/x", "toggle " + strings.Join(cfg.Effects, "/")},
		{"+/-", "effect intensity", "c", "color property,value"},
		{"m", "matrix message", "d", "roll dice"},
		{"p", "cycle perf mode", "e", "EMERGENCY STOP"},
		{"r", "system reset", "q", "quit"},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	effects := make(map[string]bool, len(cfg.Effects))
	for _, e := range cfg.Effects {
		effects[e] = false
	}
	scene := ""
	if len(cfg.Scenes) > 0 {
		scene = cfg.Scenes[0]
	}
	return panelModel{
		cfg:        cfg,
		send:       send,
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
		scene:      scene,
		effects:    effects,
		intensity:  50,
		mode:       protocol.ModeAuto,
	}
}

func (m panelModel) Init() tea.Cmd { return nil }

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.headerHeight = lipgloss.Height(m.renderHeader())
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.matrixInput || m.colorInput {
			return m.updateDialog(msg)
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
				m.updateViewportHeight()
			}
			return m, nil
		}
		return m.updateKeys(msg)
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > 1000 {
			m.logs = m.logs[len(m.logs)-1000:]
		}
		m.refreshViewport()
	case connMsg:
		m.connected = msg.up
	case statsMsg:
		m.remoteFPS = msg.fps
		m.remoteLvl = msg.level
		m.haveStats = true
	case matrixMsg:
		m.matrix = msg.display
	case sceneMsg:
		m.scene = msg.scene
	case modeMsg:
		m.mode = msg.mode
	}
	return m, nil
}

func (m panelModel) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		value := m.input.Value()
		if m.matrixInput && value != "" {
			out := protocol.New(protocol.TypeMatrixMessage)
			out.Text = value
			m.dispatch(out)
		}
		if m.colorInput {
			if prop, val, ok := parseColorInput(value); ok {
				out := protocol.New(protocol.TypeColorChange)
				out.Property = prop
				out.Value = protocol.Float(val)
				m.dispatch(out)
			}
		}
		m.matrixInput = false
		m.colorInput = false
		m.updateViewportHeight()
	case tea.KeyEsc:
		m.matrixInput = false
		m.colorInput = false
		m.updateViewportHeight()
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m panelModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "w":
		m.wrap = !m.wrap
		m.refreshViewport()
		return m, nil
	case "s":
		m.autoscroll = !m.autoscroll
		if m.autoscroll {
			m.vp.GotoBottom()
		}
		return m, nil
	case "h", "?":
		m.help = !m.help
		m.updateViewportHeight()
		return m, nil
	case "m":
		m.input = textinput.New()
		m.input.Placeholder = "matrix message"
		m.input.Focus()
		m.matrixInput = true
		m.updateViewportHeight()
		return m, nil
	case "c":
		m.input = textinput.New()
		m.input.Placeholder = "hue|saturation|brightness|contrast,value"
		m.input.Focus()
		m.colorInput = true
		m.updateViewportHeight()
		return m, nil
	case "d":
		out := protocol.New(protocol.TypeMatrixMessage)
		out.Text = m.cfg.Dice.Pool[0]
		out.Roll = 100 // manual roll always fires
		m.dispatch(out)
		return m, nil
	case "p":
		m.mode = nextMode(m.mode)
		out := protocol.New(protocol.TypePerformanceMode)
		out.Mode = m.mode
		m.dispatch(out)
		return m, nil
	case "e":
		m.dispatch(protocol.New(protocol.TypeEmergencyStop))
		for name := range m.effects {
			m.effects[name] = false
		}
		return m, nil
	case "r":
		m.dispatch(protocol.New(protocol.TypeSystemReset))
		return m, nil
	case "+", "=":
		return m.adjustIntensity(10), nil
	case "-":
		return m.adjustIntensity(-10), nil
	}

	if idx := sceneIndex(key); idx >= 0 && idx < len(m.cfg.Scenes) {
		m.scene = m.cfg.Scenes[idx]
		out := protocol.New(protocol.TypeSceneChange)
		out.Scene = m.scene
		m.dispatch(out)
		return m, nil
	}
	for i, k := range effectKeys {
		if key == k && i < len(m.cfg.Effects) {
			name := m.cfg.Effects[i]
			m.effects[name] = !m.effects[name]
			m.lastEffect = name
			out := protocol.New(protocol.TypeEffectToggle)
			out.Effect = name
			out.Enabled = protocol.Bool(m.effects[name])
			m.dispatch(out)
			return m, nil
		}
	}

	if !m.autoscroll {
		switch key {
		case "j", "down":
			m.vp.LineDown(1)
		case "k", "up":
			m.vp.LineUp(1)
		case "pgdown":
			m.vp.LineDown(10)
		case "pgup":
			m.vp.LineUp(10)
		}
	}
	return m, nil
}

// dispatch hands a message to the panel's send path when wired; the model
// stays testable without a transport.
func (m *panelModel) dispatch(out protocol.Message) {
	if m.send != nil {
		m.send(out)
	}
}

func (m panelModel) adjustIntensity(delta float64) panelModel {
	if m.lastEffect == "" {
		return m
	}
	m.intensity += delta
	if m.intensity < 0 {
		m.intensity = 0
	}
	if m.intensity > 100 {
		m.intensity = 100
	}
	out := protocol.New(protocol.TypeEffectIntensity)
	out.Effect = m.lastEffect
	out.Intensity = protocol.Float(m.intensity)
	m.dispatch(out)
	return m
}

func sceneIndex(key string) int {
	n, err := strconv.Atoi(key)
	if err != nil || n < 1 {
		return -1
	}
	return n - 1
}

func nextMode(mode string) string {
	switch mode {
	case protocol.ModeAuto:
		return protocol.ModeLow
	case protocol.ModeLow:
		return protocol.ModeHigh
	default:
		return protocol.ModeAuto
	}
}

func parseColorInput(value string) (string, float64, bool) {
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	prop := strings.TrimSpace(parts[0])
	switch prop {
	case protocol.ColorHue, protocol.ColorSaturation, protocol.ColorBrightness, protocol.ColorContrast:
	default:
		return "", 0, false
	}
	val, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return "", 0, false
	}
	return prop, val, true
}

func (m *panelModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())
	extra := 0
	if m.matrixInput || m.colorInput {
		extra = 1
	}
	h := m.height - m.headerHeight - bottomHeight - extra - 3
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *panelModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m panelModel) renderHeader() string {
	return m.table.View()
}

func (m panelModel) renderBottom() string {
	connColor := lipgloss.Color("9")
	connLabel := "DISCONNECTED"
	if m.connected {
		connColor = lipgloss.Color("10")
		connLabel = "CONNECTED"
	}
	connIndicator := lipgloss.NewStyle().Foreground(connColor).Render("● " + connLabel)

	level := "S?"
	fps := "-"
	if m.haveStats {
		level = fmt.Sprintf("S%d", m.remoteLvl)
		fps = fmt.Sprintf("%.1f", m.remoteFPS)
	}
	matrix := m.matrix
	if matrix == "" {
		matrix = "-"
	}
	var enabled []string
	for _, name := range m.cfg.Effects {
		if m.effects[name] {
			enabled = append(enabled, name)
		}
	}
	fx := strings.Join(enabled, ",")
	if fx == "" {
		fx = "none"
	}
	return fmt.Sprintf("%s | scene=%s%s%s | fx=%s%s%s | level=%s%s%s fps=%s | mode=%s | matrix=%s%s%s",
		connIndicator,
		colorBlue, m.scene, colorReset,
		colorCyan, fx, colorReset,
		colorMagenta, level, colorReset, fps,
		m.mode,
		colorYellow, matrix, colorReset)
}

func (m panelModel) renderHelp() string {
	return strings.Join([]string{
		"vjlink control panel",
		"",
		"  1-4      switch scene",
		"  g b i x  toggle effect",
		"  + / -    adjust intensity of the last toggled effect",
		"  c        color change (property,value)",
		"  m        send matrix message",
		"  d        send a manual matrix roll",
		"  p        cycle performance mode (auto/low/high)",
		"  e        emergency stop",
		"  r        system reset",
		"  w        toggle wrap, s toggle autoscroll",
		"  q        quit",
		"",
		"press ? to close help",
	}, "\n")
}

func (m panelModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", max(m.vp.Width, 1))
	sections := []string{
		m.renderHeader(),
		divider,
		m.vp.View(),
		divider,
	}
	if m.matrixInput || m.colorInput {
		sections = append(sections, m.input.View(), divider)
	}
	sections = append(sections, m.renderBottom())
	return strings.Join(sections, "\n")
}
