// Adaptive quality degradation for the visual stage.
//
// The ladder is a six-state machine ordered from full quality (S0) down to
// minimal (S5). It consumes the effective FPS estimate, degrades one step at
// a time when performance falls below the current band, and recovers one
// step at a time only after the signal has stayed clearly above a recovery
// threshold for a full hysteresis window.
package ladder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Level is a quality state, S0 (best) through S5 (worst).
type Level int

const (
	LevelFull Level = iota
	LevelHigh
	LevelMedium
	LevelReduced
	LevelLow
	LevelMinimal

	levelCount = 6
)

func (l Level) String() string {
	if l < LevelFull || l > LevelMinimal {
		return fmt.Sprintf("S?(%d)", int(l))
	}
	return fmt.Sprintf("S%d", int(l))
}

// Cause records why a transition happened.
type Cause string

const (
	CauseDegradation Cause = "degradation"
	CauseRecovery    Cause = "recovery"
	CauseForced      Cause = "forced"
)

// Band is the acceptable FPS range for a level.
type Band struct {
	MinFPS float64
	MaxFPS float64
}

// RenderConfig is the per-level side-effect bundle pushed to the stage.
type RenderConfig struct {
	PixelRatio         float64
	Shadows            bool
	PostProcessing     bool
	ParticleMultiplier float64
}

var renderConfigs = [levelCount]RenderConfig{
	{PixelRatio: 2.0, Shadows: true, PostProcessing: true, ParticleMultiplier: 1.0},
	{PixelRatio: 1.75, Shadows: true, PostProcessing: true, ParticleMultiplier: 0.8},
	{PixelRatio: 1.5, Shadows: true, PostProcessing: false, ParticleMultiplier: 0.6},
	{PixelRatio: 1.25, Shadows: false, PostProcessing: false, ParticleMultiplier: 0.4},
	{PixelRatio: 1.0, Shadows: false, PostProcessing: false, ParticleMultiplier: 0.2},
	{PixelRatio: 0.75, Shadows: false, PostProcessing: false, ParticleMultiplier: 0.1},
}

// RenderConfigFor returns the side-effect bundle for a level.
func RenderConfigFor(l Level) RenderConfig {
	if l < LevelFull || l > LevelMinimal {
		return renderConfigs[LevelMinimal]
	}
	return renderConfigs[l]
}

// Stage is the rendering collaborator the ladder pokes on every transition.
// Setters return errors so a missing collaborator surfaces in the log, but
// apply failures never block the transition itself.
type Stage interface {
	SetPixelRatio(ratio float64) error
	SetShadows(enabled bool) error
	SetPostProcessing(enabled bool) error
	SetParticleMultiplier(mult float64) error
}

// Transition is one recorded state change.
type Transition struct {
	From  Level     `json:"from"`
	To    Level     `json:"to"`
	Cause Cause     `json:"cause"`
	FPS   float64   `json:"fps"`
	At    time.Time `json:"at"`
}

// Config tunes the ladder's thresholds and timing.
type Config struct {
	Bands                 [levelCount]Band
	DegradationBuffer     float64
	DegradationDelay      time.Duration
	RecoveryThreshold     float64
	RecoveryWindow        time.Duration
	RecoveryCancelSamples int // consecutive sub-threshold samples that cancel an open window
	HistoryLimit          int
}

// Ladder is the degradation state machine. All mutation happens on the
// signal path (Observe) or through the explicit control operations; there
// is no background timer. An open recovery window is a stored wall-clock
// deadline checked against each observation, which keeps behavior
// deterministic under an injected clock.
type Ladder struct {
	cfg   Config
	stage Stage
	log   *slog.Logger

	mu               sync.Mutex
	level            Level
	pinned           bool
	lastTransition   time.Time
	recoveryDeadline time.Time // zero when no window is open
	subThreshold     int
	lastFPS          float64
	history          []Transition
	onTransition     func(Transition)
	now              func() time.Time
}

// New creates a ladder at S0. The confirmation delay is armed from
// construction time, so a burst of bad samples right at startup still waits
// the full delay before the first degrade. stage and onTransition may be nil.
func New(cfg Config, stage Stage, onTransition func(Transition), log *slog.Logger) *Ladder {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RecoveryCancelSamples <= 0 {
		cfg.RecoveryCancelSamples = 1
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	l := &Ladder{
		cfg:          cfg,
		stage:        stage,
		log:          log,
		onTransition: onTransition,
		now:          time.Now,
	}
	l.lastTransition = l.now()
	return l
}

// Observe feeds one effective-FPS reading through the transition rules.
func (l *Ladder) Observe(fps float64) {
	l.mu.Lock()
	now := l.now()
	l.lastFPS = fps

	if l.pinned {
		l.mu.Unlock()
		return
	}

	degrade := l.level < LevelMinimal && fps < l.cfg.Bands[l.level].MinFPS-l.cfg.DegradationBuffer
	recovery := l.level > LevelFull && fps > l.cfg.RecoveryThreshold

	if !l.recoveryDeadline.IsZero() {
		switch {
		case degrade:
			// degrade and recovery cannot both be in flight: the window
			// dies now, the degrade itself waits for the next observation
			l.cancelWindowLocked("degrade condition")
			l.mu.Unlock()
			return
		case fps <= l.cfg.RecoveryThreshold:
			l.subThreshold++
			if l.subThreshold >= l.cfg.RecoveryCancelSamples {
				l.cancelWindowLocked("sub-threshold sample")
			}
			l.mu.Unlock()
			return
		default:
			l.subThreshold = 0
			if !now.Before(l.recoveryDeadline) {
				tr := l.transitionLocked(l.level-1, CauseRecovery, fps, now)
				l.mu.Unlock()
				l.notify(tr)
				return
			}
			l.mu.Unlock()
			return
		}
	}

	if recovery {
		l.recoveryDeadline = now.Add(l.cfg.RecoveryWindow)
		l.subThreshold = 0
		l.log.Debug("recovery window opened", "level", l.level, "fps", fps, "deadline", l.recoveryDeadline)
		l.mu.Unlock()
		return
	}

	if degrade && now.Sub(l.lastTransition) >= l.cfg.DegradationDelay {
		tr := l.transitionLocked(l.level+1, CauseDegradation, fps, now)
		l.mu.Unlock()
		l.notify(tr)
		return
	}
	l.mu.Unlock()
}

// Force moves straight to the given level, cancelling any open recovery
// window and bypassing delay and hysteresis.
func (l *Ladder) Force(to Level) {
	if to < LevelFull {
		to = LevelFull
	}
	if to > LevelMinimal {
		to = LevelMinimal
	}
	l.mu.Lock()
	l.cancelWindowLocked("forced transition")
	if to == l.level {
		l.lastTransition = l.now()
		l.mu.Unlock()
		return
	}
	tr := l.transitionLocked(to, CauseForced, l.lastFPS, l.now())
	l.mu.Unlock()
	l.notify(tr)
}

// Pin forces a level and disables automatic movement until Unpin.
func (l *Ladder) Pin(to Level) {
	l.Force(to)
	l.mu.Lock()
	l.pinned = true
	l.mu.Unlock()
}

// Unpin re-enables automatic movement. The confirmation delay restarts so
// the first automatic degrade after unpinning is not instantaneous.
func (l *Ladder) Unpin() {
	l.mu.Lock()
	l.pinned = false
	l.lastTransition = l.now()
	l.mu.Unlock()
}

// Reset unpins and forces the ladder back to full quality.
func (l *Ladder) Reset() {
	l.Unpin()
	l.Force(LevelFull)
}

// Apply re-applies the current level's render config. Safe to call at
// process start or any time the stage needs to be resynced.
func (l *Ladder) Apply() {
	l.mu.Lock()
	level := l.level
	l.mu.Unlock()
	l.applyStage(level)
}

// Level returns the current quality state.
func (l *Ladder) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Pinned reports whether automatic movement is disabled.
func (l *Ladder) Pinned() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pinned
}

// RecoveryPending reports whether a recovery window is currently open.
func (l *Ladder) RecoveryPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.recoveryDeadline.IsZero()
}

// History returns a copy of the recorded transitions, oldest first.
func (l *Ladder) History() []Transition {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transition, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Ladder) cancelWindowLocked(reason string) {
	if l.recoveryDeadline.IsZero() {
		return
	}
	l.recoveryDeadline = time.Time{}
	l.subThreshold = 0
	l.log.Debug("recovery window cancelled", "reason", reason, "level", l.level)
}

func (l *Ladder) transitionLocked(to Level, cause Cause, fps float64, at time.Time) Transition {
	tr := Transition{From: l.level, To: to, Cause: cause, FPS: fps, At: at}
	l.level = to
	l.lastTransition = at
	l.recoveryDeadline = time.Time{}
	l.subThreshold = 0
	l.history = append(l.history, tr)
	if len(l.history) > l.cfg.HistoryLimit {
		l.history = l.history[len(l.history)-l.cfg.HistoryLimit:]
	}
	l.log.Info("quality transition",
		"from", tr.From, "to", tr.To, "cause", tr.Cause, "fps", tr.FPS)
	return tr
}

// notify applies side effects and fires the callback outside the lock.
func (l *Ladder) notify(tr Transition) {
	l.applyStage(tr.To)
	if l.onTransition != nil {
		l.onTransition(tr)
	}
}

func (l *Ladder) applyStage(level Level) {
	if l.stage == nil {
		return
	}
	rc := RenderConfigFor(level)
	if err := l.stage.SetPixelRatio(rc.PixelRatio); err != nil {
		l.log.Error("apply pixel ratio", "level", level, "error", err)
	}
	if err := l.stage.SetShadows(rc.Shadows); err != nil {
		l.log.Error("apply shadows", "level", level, "error", err)
	}
	if err := l.stage.SetPostProcessing(rc.PostProcessing); err != nil {
		l.log.Error("apply post-processing", "level", level, "error", err)
	}
	if err := l.stage.SetParticleMultiplier(rc.ParticleMultiplier); err != nil {
		l.log.Error("apply particle multiplier", "level", level, "error", err)
	}
}
