// Command dispatch for inbound control messages.
//
// The table maps message types to handlers. Handlers are synchronous and may
// return an acknowledgement message for the caller to send back. Unknown
// types are dropped without error. The table also owns the receiver-side
// control state the handlers mutate: the effect registry, the current scene,
// and the color properties.
package dispatch

import (
	"log/slog"
	"sync"

	"vjlink/internal/protocol"
)

// HandlerFunc processes one inbound message and optionally returns an ack.
type HandlerFunc func(protocol.Message) *protocol.Message

// Effect is the state of one toggleable effect. Intensity is canonical
// 0–100 regardless of which wire representation set it.
type Effect struct {
	Enabled   bool    `json:"enabled"`
	Intensity float64 `json:"intensity"`
}

const defaultIntensity = 50

// Table routes messages and owns the effect/scene/color state.
type Table struct {
	log *slog.Logger

	mu        sync.Mutex
	handlers  map[protocol.Type]HandlerFunc
	effects   map[string]Effect
	scene     string
	homeScene string
	colors    map[string]float64
}

// New creates a table with the built-in handlers registered. The first
// scene is the home scene the registry returns to on reset.
func New(scenes, effects []string, log *slog.Logger) *Table {
	if log == nil {
		log = slog.Default()
	}
	t := &Table{
		log:      log,
		handlers: make(map[protocol.Type]HandlerFunc),
		effects:  make(map[string]Effect, len(effects)),
		colors:   make(map[string]float64),
	}
	for _, name := range effects {
		t.effects[name] = Effect{Intensity: defaultIntensity}
	}
	if len(scenes) > 0 {
		t.homeScene = scenes[0]
		t.scene = scenes[0]
	}

	t.handlers[protocol.TypePing] = t.handlePing
	t.handlers[protocol.TypeControlConnect] = t.handlePing
	t.handlers[protocol.TypeSceneChange] = t.handleSceneChange
	t.handlers[protocol.TypeEffectToggle] = t.handleEffectToggle
	t.handlers[protocol.TypeEffectIntensity] = t.handleEffectIntensity
	t.handlers[protocol.TypeFXIntensity] = t.handleEffectIntensity
	t.handlers[protocol.TypeColorChange] = t.handleColorChange
	return t
}

// Register installs or replaces the handler for a type. The orchestrator
// uses this for the handlers that need collaborators beyond the table's
// own state (matrix display, performance pipeline, lifecycle commands).
func (t *Table) Register(typ protocol.Type, h HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[typ] = h
}

// Dispatch routes one message. Returns the handler's ack, or nil when the
// type is unknown or the handler has nothing to say.
func (t *Table) Dispatch(m protocol.Message) *protocol.Message {
	t.mu.Lock()
	h, ok := t.handlers[m.Type]
	t.mu.Unlock()
	if !ok {
		t.log.Debug("unhandled message type", "type", m.Type)
		return nil
	}
	return h(m)
}

func (t *Table) handlePing(protocol.Message) *protocol.Message {
	ack := protocol.New(protocol.TypePong)
	return &ack
}

func (t *Table) handleSceneChange(m protocol.Message) *protocol.Message {
	if m.Scene == "" {
		return nil
	}
	t.mu.Lock()
	t.scene = m.Scene
	t.mu.Unlock()
	t.log.Info("scene changed", "scene", m.Scene)
	ack := protocol.New(protocol.TypeSceneChanged)
	ack.Scene = m.Scene
	return &ack
}

func (t *Table) handleEffectToggle(m protocol.Message) *protocol.Message {
	if m.Effect == "" || m.Enabled == nil {
		return nil
	}
	t.mu.Lock()
	e, ok := t.effects[m.Effect]
	if !ok {
		e = Effect{Intensity: defaultIntensity}
	}
	e.Enabled = *m.Enabled
	t.effects[m.Effect] = e
	t.mu.Unlock()
	t.log.Info("effect toggled", "effect", m.Effect, "enabled", *m.Enabled)
	return nil
}

func (t *Table) handleEffectIntensity(m protocol.Message) *protocol.Message {
	if m.Effect == "" || m.Intensity == nil {
		return nil
	}
	norm := protocol.NormalizeIntensity(*m.Intensity)
	t.mu.Lock()
	e := t.effects[m.Effect]
	e.Intensity = norm
	t.effects[m.Effect] = e
	t.mu.Unlock()
	t.log.Info("effect intensity", "effect", m.Effect, "intensity", norm)
	return nil
}

func (t *Table) handleColorChange(m protocol.Message) *protocol.Message {
	if m.Value == nil {
		return nil
	}
	switch m.Property {
	case protocol.ColorHue, protocol.ColorSaturation, protocol.ColorBrightness, protocol.ColorContrast:
	default:
		t.log.Debug("unknown color property", "property", m.Property)
		return nil
	}
	t.mu.Lock()
	t.colors[m.Property] = *m.Value
	t.mu.Unlock()
	t.log.Info("color changed", "property", m.Property, "value", *m.Value)
	return nil
}

// Scene returns the current scene.
func (t *Table) Scene() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scene
}

// Effects returns a snapshot of the registry.
func (t *Table) Effects() map[string]Effect {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Effect, len(t.effects))
	for k, v := range t.effects {
		out[k] = v
	}
	return out
}

// Colors returns a snapshot of the color properties that have been set.
func (t *Table) Colors() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.colors))
	for k, v := range t.colors {
		out[k] = v
	}
	return out
}

// DisableAll turns every effect off. Used by the emergency stop.
func (t *Table) DisableAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, e := range t.effects {
		e.Enabled = false
		t.effects[name] = e
	}
}

// Reset restores the home scene, disables every effect, restores default
// intensities, and clears color properties.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scene = t.homeScene
	for name := range t.effects {
		t.effects[name] = Effect{Intensity: defaultIntensity}
	}
	t.colors = make(map[string]float64)
}
