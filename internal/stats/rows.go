// Performance statistics rows and the writer family that persists them.
package stats

import "time"

// PerfRow is one accepted performance_update, enriched with the local
// effective estimate and quality level at the time of ingestion.
type PerfRow struct {
	InstallationID string    `json:"installation_id"`
	Channel        string    `json:"channel"`
	FPS            float64   `json:"fps"`
	EffectiveFPS   float64   `json:"effective_fps"`
	Memory         float64   `json:"memory,omitempty"`
	DOMNodes       int       `json:"dom_nodes,omitempty"`
	Level          int       `json:"level"`
	Timestamp      time.Time `json:"ts"`
}

// TransitionRow records one quality-level transition.
type TransitionRow struct {
	InstallationID string    `json:"installation_id"`
	Channel        string    `json:"channel"`
	FromLevel      int       `json:"from_level"`
	ToLevel        int       `json:"to_level"`
	Cause          string    `json:"cause"`
	FPS            float64   `json:"fps"`
	Timestamp      time.Time `json:"ts"`
}
