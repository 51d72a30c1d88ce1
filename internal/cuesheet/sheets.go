package cuesheet

// BuiltIn returns predefined cue sheets for common set structures.
func BuiltIn() map[string]Sheet {
	return map[string]Sheet{
		"warmup": {
			Name:        "Warmup",
			Description: "Slow build from ambient waves into the full matrix look.",
			Phases: []Phase{
				{
					Name:        "ambient",
					Description: "Doors open, low-key waves with soft blur.",
					Scene:       "waves",
					Effects:     []EffectPreset{{Name: "blur", Enabled: true, Intensity: 30}},
					Triggers:    []Trigger{{Event: "time_elapsed", Value: 600, Next: "build"}},
				},
				{
					Name:        "build",
					Description: "Particles come up, blur backs off.",
					Scene:       "particles",
					Effects: []EffectPreset{
						{Name: "blur", Enabled: false},
						{Name: "glitch", Enabled: true, Intensity: 40},
					},
					Triggers: []Trigger{{Event: "time_elapsed", Value: 600, Next: "drop"}},
				},
				{
					Name:        "drop",
					Description: "Full matrix rain with the classic greeting.",
					Scene:       "matrix",
					Effects:     []EffectPreset{{Name: "glitch", Enabled: true, Intensity: 80}},
					Message:     "FOLLOW THE WHITE RABBIT",
				},
			},
		},
		"peak": {
			Name:        "Peak",
			Description: "High-energy strobe set with a safety wind-down when the renderer struggles.",
			Phases: []Phase{
				{
					Name:        "strobe",
					Description: "Strobe scene with scanlines and inverted bursts.",
					Scene:       "strobe",
					Effects: []EffectPreset{
						{Name: "scanlines", Enabled: true, Intensity: 70},
						{Name: "invert", Enabled: true, Intensity: 100},
					},
					Triggers: []Trigger{{Event: "level_reached", Value: 3, Next: "winddown"}},
				},
				{
					Name:        "winddown",
					Description: "The receiver is degrading, drop back to waves.",
					Scene:       "waves",
					Effects: []EffectPreset{
						{Name: "scanlines", Enabled: false},
						{Name: "invert", Enabled: false},
					},
				},
			},
		},
	}
}
