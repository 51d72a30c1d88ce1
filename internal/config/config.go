// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TransportConfig selects and tunes the message channel between the panel
// and the receiver.
type TransportConfig struct {
	Backend        string `yaml:"backend"` // "store" or "socket"
	StoreDir       string `yaml:"store_dir"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	SocketURL      string `yaml:"socket_url"`
	Mirror         bool   `yaml:"mirror"`
}

// ConnectionConfig tunes the liveness monitor.
type ConnectionConfig struct {
	TimeoutMS int `yaml:"timeout_ms"`
}

// FPSConfig tunes the frame-rate signal processor.
type FPSConfig struct {
	WindowMS   int     `yaml:"window_ms"`
	Alpha      float64 `yaml:"alpha"`
	MinSamples int     `yaml:"min_samples"`
}

// Band is the FPS threshold band of one quality level.
type Band struct {
	MinFPS float64 `yaml:"min_fps"`
	MaxFPS float64 `yaml:"max_fps"`
}

// LadderConfig tunes the performance degradation ladder.
type LadderConfig struct {
	Bands                 []Band  `yaml:"bands"` // exactly six, best to worst
	DegradationBuffer     float64 `yaml:"degradation_buffer"`
	DegradationDelayMS    int     `yaml:"degradation_delay_ms"`
	RecoveryThreshold     float64 `yaml:"recovery_threshold"`
	RecoveryWindowMS      int     `yaml:"recovery_window_ms"`
	RecoveryCancelSamples int     `yaml:"recovery_cancel_samples"`
	HistoryLimit          int     `yaml:"history_limit"`
}

// DiceConfig tunes the random matrix-message scheduler.
type DiceConfig struct {
	PeriodMS  int      `yaml:"period_ms"`
	Threshold int      `yaml:"threshold"` // roll in [1,100] must exceed this
	Pool      []string `yaml:"pool"`
}

// StatsConfig selects the performance stat sinks.
type StatsConfig struct {
	GreptimeEndpoint string `yaml:"greptime_endpoint"`
	Database         string `yaml:"database"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration for one vjlink installation.
type Config struct {
	InstallationID string           `yaml:"installation_id"`
	Channel        string           `yaml:"channel"`
	Scenes         []string         `yaml:"scenes"`
	Effects        []string         `yaml:"effects"`
	Transport      TransportConfig  `yaml:"transport"`
	Connection     ConnectionConfig `yaml:"connection"`
	FPS            FPSConfig        `yaml:"fps"`
	Ladder         LadderConfig     `yaml:"ladder"`
	Dice           DiceConfig       `yaml:"dice"`
	Stats          StatsConfig      `yaml:"stats"`
	Logging        LoggingConfig    `yaml:"logging"`
}

// Load loads YAML config and validates it against a CUE schema.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with the installation defaults. The
// numeric defaults match the tuning the ladder was calibrated with.
func (c *Config) ApplyDefaults() {
	if c.InstallationID == "" {
		c.InstallationID = "vjlink-01"
	}
	if c.Channel == "" {
		c.Channel = "vj_control"
	}
	if c.Transport.Backend == "" {
		c.Transport.Backend = "store"
	}
	if c.Transport.StoreDir == "" {
		c.Transport.StoreDir = os.TempDir()
	}
	if c.Transport.PollIntervalMS <= 0 {
		c.Transport.PollIntervalMS = 250
	}
	if c.Transport.SocketURL == "" {
		c.Transport.SocketURL = "ws://localhost:8080/ws"
	}
	if c.Connection.TimeoutMS <= 0 {
		c.Connection.TimeoutMS = 5000
	}
	if c.FPS.WindowMS <= 0 {
		c.FPS.WindowMS = 10000
	}
	if c.FPS.Alpha <= 0 || c.FPS.Alpha > 1 {
		c.FPS.Alpha = 0.1
	}
	if c.FPS.MinSamples <= 0 {
		c.FPS.MinSamples = 5
	}
	if len(c.Ladder.Bands) == 0 {
		c.Ladder.Bands = DefaultBands()
	}
	if c.Ladder.DegradationBuffer <= 0 {
		c.Ladder.DegradationBuffer = 5
	}
	if c.Ladder.DegradationDelayMS <= 0 {
		c.Ladder.DegradationDelayMS = 3000
	}
	if c.Ladder.RecoveryThreshold <= 0 {
		c.Ladder.RecoveryThreshold = 95
	}
	if c.Ladder.RecoveryWindowMS <= 0 {
		c.Ladder.RecoveryWindowMS = 15000
	}
	if c.Ladder.RecoveryCancelSamples <= 0 {
		c.Ladder.RecoveryCancelSamples = 1
	}
	if c.Ladder.HistoryLimit <= 0 {
		c.Ladder.HistoryLimit = 50
	}
	if c.Dice.PeriodMS <= 0 {
		c.Dice.PeriodMS = 15000
	}
	if c.Dice.Threshold <= 0 {
		c.Dice.Threshold = 90
	}
	if len(c.Dice.Pool) == 0 {
		c.Dice.Pool = []string{"SIGNAL LOST", "WAKE UP", "FOLLOW THE WHITE RABBIT", "SYSTEM FAILURE"}
	}
	if len(c.Scenes) == 0 {
		c.Scenes = []string{"matrix", "particles", "waves", "strobe"}
	}
	if len(c.Effects) == 0 {
		c.Effects = []string{"glitch", "blur", "invert", "scanlines"}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Check rejects configurations the runtime cannot operate with.
func (c *Config) Check() error {
	if len(c.Ladder.Bands) != 6 {
		return fmt.Errorf("ladder requires exactly 6 bands, got %d", len(c.Ladder.Bands))
	}
	for i := 1; i < len(c.Ladder.Bands); i++ {
		if c.Ladder.Bands[i].MinFPS > c.Ladder.Bands[i-1].MinFPS {
			return fmt.Errorf("ladder bands must be ordered best to worst: band %d min_fps %.1f > band %d min_fps %.1f",
				i, c.Ladder.Bands[i].MinFPS, i-1, c.Ladder.Bands[i-1].MinFPS)
		}
	}
	if c.Ladder.RecoveryThreshold <= c.Ladder.Bands[0].MinFPS {
		return fmt.Errorf("recovery_threshold %.1f must exceed the best band's min_fps %.1f",
			c.Ladder.RecoveryThreshold, c.Ladder.Bands[0].MinFPS)
	}
	switch c.Transport.Backend {
	case "store", "socket":
	default:
		return fmt.Errorf("unknown transport backend %q", c.Transport.Backend)
	}
	if c.Dice.Threshold >= 100 {
		return fmt.Errorf("dice threshold %d leaves no winning rolls", c.Dice.Threshold)
	}
	return nil
}

// DefaultBands returns the six quality-level threshold bands, best to worst.
func DefaultBands() []Band {
	return []Band{
		{MinFPS: 75, MaxFPS: 240},
		{MinFPS: 60, MaxFPS: 75},
		{MinFPS: 45, MaxFPS: 60},
		{MinFPS: 30, MaxFPS: 45},
		{MinFPS: 20, MaxFPS: 30},
		{MinFPS: 0, MaxFPS: 20},
	}
}

// Default returns a fully-defaulted configuration, used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// PollInterval returns the store poll interval as a duration.
func (t TransportConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalMS) * time.Millisecond
}

// Timeout returns the liveness timeout as a duration.
func (c ConnectionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Window returns the FPS trailing window as a duration.
func (f FPSConfig) Window() time.Duration {
	return time.Duration(f.WindowMS) * time.Millisecond
}

// DegradationDelay returns the transition confirmation delay as a duration.
func (l LadderConfig) DegradationDelay() time.Duration {
	return time.Duration(l.DegradationDelayMS) * time.Millisecond
}

// RecoveryWindow returns the hysteresis window as a duration.
func (l LadderConfig) RecoveryWindow() time.Duration {
	return time.Duration(l.RecoveryWindowMS) * time.Millisecond
}

// Period returns the dice countdown period as a duration.
func (d DiceConfig) Period() time.Duration {
	return time.Duration(d.PeriodMS) * time.Millisecond
}
