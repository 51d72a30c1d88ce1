// Cue sheets: scripted show phases the panel can fire as command batches.
package cuesheet

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vjlink/internal/protocol"
)

// Sheet defines a show with ordered phases and an overall description.
type Sheet struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Phases      []Phase `yaml:"phases"`
}

// Phase describes one stage of the show: the scene, the effect presets, an
// optional matrix message, and the triggers that advance to another phase.
type Phase struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Scene       string         `yaml:"scene,omitempty"`
	Effects     []EffectPreset `yaml:"effects,omitempty"`
	Message     string         `yaml:"message,omitempty"`
	Triggers    []Trigger      `yaml:"triggers,omitempty"`
}

// EffectPreset declares the desired state of one effect during a phase.
type EffectPreset struct {
	Name      string  `yaml:"name"`
	Enabled   bool    `yaml:"enabled"`
	Intensity float64 `yaml:"intensity,omitempty"`
}

// Trigger moves the show to another phase based on an event.
type Trigger struct {
	Event string `yaml:"event"` // "time_elapsed" (seconds) or "level_reached"
	Value int    `yaml:"value"`
	Next  string `yaml:"next"`
}

// Event represents a runtime occurrence that may advance the show.
type Event struct {
	Type  string
	Value int
}

// Load reads a YAML cue sheet from disk.
func Load(path string) (*Sheet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cue sheet: %w", err)
	}
	var s Sheet
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse cue sheet: %w", err)
	}
	return &s, nil
}

// Phase returns the named phase, or nil.
func (s *Sheet) Phase(name string) *Phase {
	for i := range s.Phases {
		if s.Phases[i].Name == name {
			return &s.Phases[i]
		}
	}
	return nil
}

// NextPhase returns the name of the next phase given the current phase and
// event. If no trigger matches, ok will be false.
func (s *Sheet) NextPhase(current string, ev Event) (next string, ok bool) {
	for _, p := range s.Phases {
		if p.Name != current {
			continue
		}
		for _, tr := range p.Triggers {
			if tr.Event == ev.Type && ev.Value >= tr.Value {
				return tr.Next, true
			}
		}
	}
	return "", false
}

// Commands converts a phase into the control messages that realize it.
func (p *Phase) Commands() []protocol.Message {
	var out []protocol.Message
	if p.Scene != "" {
		m := protocol.New(protocol.TypeSceneChange)
		m.Scene = p.Scene
		out = append(out, m)
	}
	for _, e := range p.Effects {
		toggle := protocol.New(protocol.TypeEffectToggle)
		toggle.Effect = e.Name
		toggle.Enabled = protocol.Bool(e.Enabled)
		out = append(out, toggle)
		if e.Enabled && e.Intensity > 0 {
			level := protocol.New(protocol.TypeEffectIntensity)
			level.Effect = e.Name
			level.Intensity = protocol.Float(e.Intensity)
			out = append(out, level)
		}
	}
	if p.Message != "" {
		m := protocol.New(protocol.TypeMatrixMessage)
		m.Text = p.Message
		out = append(out, m)
	}
	return out
}
