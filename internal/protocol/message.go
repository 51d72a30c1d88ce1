// Control message envelope shared by the panel and the receiver.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a control message.
type Type string

// Message types exchanged between the control panel and the visual receiver.
const (
	TypePing                   Type = "ping"
	TypePong                   Type = "pong"
	TypeControlConnect         Type = "control_connect"
	TypeSceneChange            Type = "scene_change"
	TypeSceneChanged           Type = "scene_changed"
	TypeEffectToggle           Type = "effect_toggle"
	TypeEffectIntensity        Type = "effect_intensity"
	TypeFXIntensity            Type = "fx_intensity"
	TypeColorChange            Type = "color_change"
	TypeMatrixMessage          Type = "matrix_message"
	TypeMatrixMessageDisplayed Type = "matrix_message_displayed"
	TypePerformanceUpdate      Type = "performance_update"
	TypePerformanceStats       Type = "performance_stats"
	TypePerformanceMode        Type = "performance_mode"
	TypePerformanceModeUpdated Type = "performance_mode_updated"
	TypeEmergencyStop          Type = "emergency_stop"
	TypeSystemReset            Type = "system_reset"
	TypeSystemReload           Type = "system_reload"
)

// Color properties accepted by color_change.
const (
	ColorHue        = "hue"
	ColorSaturation = "saturation"
	ColorBrightness = "brightness"
	ColorContrast   = "contrast"
)

// Performance modes accepted by performance_mode.
const (
	ModeLow  = "low"
	ModeAuto = "auto"
	ModeHigh = "high"
)

// Message is the unit of communication. Payload fields are flat on the
// envelope and serialized only when set, so every type shares one wire shape:
// { type, id, timestamp, ...payload }.
type Message struct {
	Type      Type   `json:"type"`
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	Scene     string   `json:"scene,omitempty"`
	Effect    string   `json:"effect,omitempty"`
	Enabled   *bool    `json:"enabled,omitempty"`
	Intensity *float64 `json:"intensity,omitempty"`
	Property  string   `json:"property,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Text      string   `json:"message,omitempty"`
	Roll      int      `json:"roll,omitempty"`
	FPS       *float64 `json:"fps,omitempty"`
	Memory    *float64 `json:"memory,omitempty"`
	DOMNodes  *int     `json:"domNodes,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	Level     *int     `json:"level,omitempty"`
}

// New creates a message of the given type with a fresh ID and timestamp.
func New(t Type) Message {
	return Message{Type: t, ID: NewID(), Timestamp: time.Now().UnixMilli()}
}

// NewID returns a process-unique message ID: a millisecond prefix for rough
// ordering plus a random suffix for uniqueness.
func NewID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.New().String())
}

// Stamp fills in ID and Timestamp if the producer left them empty.
func (m *Message) Stamp() {
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
}

// Liveness reports whether receipt of this message proves the remote side is
// alive and responsive.
func (m Message) Liveness() bool {
	switch m.Type {
	case TypePing, TypePong, TypeControlConnect, TypePerformanceUpdate, TypePerformanceStats:
		return true
	}
	return false
}

// Critical reports whether the message should be mirrored across redundant
// transports. Liveness replies are the only messages worth the duplication:
// losing one silently would flip the connection indicator.
func (m Message) Critical() bool {
	return m.Type == TypePong || m.Type == TypeControlConnect
}

// Encode serializes the message. A false return means the message could not
// be serialized and must be dropped; callers never see an error.
func Encode(m Message) ([]byte, bool) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Decode parses a wire payload. Unparseable input and messages without a
// type are dropped (ok=false), never surfaced as errors.
func Decode(data []byte) (Message, bool) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, false
	}
	if m.Type == "" {
		return Message{}, false
	}
	return m, true
}

// NormalizeIntensity converts either a 0–1 fractional or a 0–100 integer
// intensity to the canonical 0–100 range. Values at or below 1 are treated
// as fractional; out-of-range values are clamped.
func NormalizeIntensity(v float64) float64 {
	if v <= 1 {
		v *= 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Float returns a pointer to v, for optional payload fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for optional payload fields.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v, for optional payload fields.
func Int(v int) *int { return &v }
