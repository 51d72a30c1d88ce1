// Frame-rate signal smoothing for the degradation ladder.
package fpsmeter

import (
	"sync"
	"time"
)

// Sample is one raw frame-rate reading.
type Sample struct {
	FPS float64
	At  time.Time
}

// Config tunes the processor.
type Config struct {
	Window     time.Duration // trailing retention window for raw samples
	Alpha      float64       // EWMA smoothing factor, small = slow to react
	MinSamples int           // below this count, EffectiveFPS is the EWMA alone
}

// Processor keeps a trailing window of raw samples and an exponentially
// weighted moving average, and derives a single conservative estimate from
// the two. Taking the minimum of the estimators means a slow EWMA decline
// cannot be masked by a momentarily recovered window average, and vice versa.
type Processor struct {
	cfg Config

	mu       sync.Mutex
	samples  []Sample
	ewma     float64
	ewmaInit bool
}

// New creates a processor. Zero config fields get the calibrated defaults.
func New(cfg Config) *Processor {
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Second
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.1
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 5
	}
	return &Processor{cfg: cfg}
}

// Ingest appends a sample, prunes readings older than the trailing window,
// and advances the EWMA. Negative readings are clamped to zero.
func (p *Processor) Ingest(fps float64, at time.Time) {
	if fps < 0 {
		fps = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.samples = append(p.samples, Sample{FPS: fps, At: at})
	cutoff := at.Add(-p.cfg.Window)
	kept := p.samples[:0]
	for _, s := range p.samples {
		if !s.At.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	p.samples = kept

	if !p.ewmaInit {
		p.ewma = fps
		p.ewmaInit = true
	} else {
		p.ewma = p.cfg.Alpha*fps + (1-p.cfg.Alpha)*p.ewma
	}
}

// EffectiveFPS returns the estimate the ladder acts on: the EWMA alone until
// the minimum sample count is reached, then min(window average, EWMA).
func (p *Processor) EffectiveFPS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.samples) < p.cfg.MinSamples {
		return p.ewma
	}
	avg := p.windowAverageLocked()
	if avg < p.ewma {
		return avg
	}
	return p.ewma
}

// WindowAverage returns the arithmetic mean of retained samples, zero when
// none are retained.
func (p *Processor) WindowAverage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.windowAverageLocked()
}

func (p *Processor) windowAverageLocked() float64 {
	if len(p.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range p.samples {
		sum += s.FPS
	}
	return sum / float64(len(p.samples))
}

// EWMA returns the current smoothed value.
func (p *Processor) EWMA() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ewma
}

// SampleCount returns the number of retained samples.
func (p *Processor) SampleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples)
}

// Reset discards all samples and the EWMA state.
func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples = nil
	p.ewma = 0
	p.ewmaInit = false
}
