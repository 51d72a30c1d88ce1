package fpsmeter

import (
	"math"
	"testing"
	"time"
)

func TestEffectiveFPS_EqualsEWMABelowMinSamples(t *testing.T) {
	p := New(Config{Window: 10 * time.Second, Alpha: 0.1, MinSamples: 5})
	at := time.Unix(1000, 0)
	readings := []float64{60, 55, 58, 52}
	want := 0.0
	for i, fps := range readings {
		p.Ingest(fps, at.Add(time.Duration(i)*time.Second))
		if i == 0 {
			want = fps
		} else {
			want = 0.1*fps + 0.9*want
		}
	}
	if got := p.EffectiveFPS(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("below min samples EffectiveFPS = %v, want EWMA %v", got, want)
	}
	if got := p.EWMA(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("EWMA = %v, want %v", got, want)
	}
}

func TestEffectiveFPS_Boundedness(t *testing.T) {
	p := New(Config{})
	at := time.Unix(1000, 0)
	samples := []float64{80, 30, 120, 0, 55, 61.5, 99, 42}
	maxSeen := 0.0
	for i, fps := range samples {
		p.Ingest(fps, at.Add(time.Duration(i)*100*time.Millisecond))
		if fps > maxSeen {
			maxSeen = fps
		}
		got := p.EffectiveFPS()
		if got < 0 || got > maxSeen {
			t.Fatalf("EffectiveFPS %v outside [0, %v] after sample %d", got, maxSeen, i)
		}
	}
}

func TestEffectiveFPS_MinimumOfTwoEstimators(t *testing.T) {
	p := New(Config{Window: 10 * time.Second, Alpha: 0.1, MinSamples: 3})
	at := time.Unix(1000, 0)
	// a long run of low readings drags the EWMA down
	for i := 0; i < 30; i++ {
		p.Ingest(30, at.Add(time.Duration(i)*300*time.Millisecond))
	}
	// a brief recovery lifts the window average faster than the EWMA
	base := at.Add(20 * time.Second)
	for i := 0; i < 5; i++ {
		p.Ingest(90, base.Add(time.Duration(i)*300*time.Millisecond))
	}
	got := p.EffectiveFPS()
	if got >= p.WindowAverage() {
		t.Fatalf("expected the slow EWMA to cap the estimate: got %v, window avg %v, ewma %v",
			got, p.WindowAverage(), p.EWMA())
	}
	if math.Abs(got-p.EWMA()) > 1e-9 {
		t.Fatalf("estimate should equal the smaller estimator (EWMA %v), got %v", p.EWMA(), got)
	}
}

func TestIngest_PrunesByAgeNotCount(t *testing.T) {
	p := New(Config{Window: 2 * time.Second, Alpha: 0.1, MinSamples: 1})
	at := time.Unix(1000, 0)
	p.Ingest(10, at)
	p.Ingest(20, at.Add(1*time.Second))
	p.Ingest(30, at.Add(4*time.Second)) // first two fall out of the window
	if n := p.SampleCount(); n != 1 {
		t.Fatalf("expected 1 retained sample, got %d", n)
	}
	if avg := p.WindowAverage(); avg != 30 {
		t.Fatalf("window average = %v, want 30", avg)
	}
}

func TestIngest_ClampsNegativeReadings(t *testing.T) {
	p := New(Config{MinSamples: 1})
	p.Ingest(-15, time.Unix(1000, 0))
	if got := p.EffectiveFPS(); got != 0 {
		t.Fatalf("negative reading should clamp to 0, got %v", got)
	}
}

func TestReset_ClearsState(t *testing.T) {
	p := New(Config{MinSamples: 1})
	p.Ingest(60, time.Unix(1000, 0))
	p.Reset()
	if p.SampleCount() != 0 || p.EWMA() != 0 || p.EffectiveFPS() != 0 {
		t.Fatal("Reset left residual state")
	}
	// EWMA re-seeds from the first sample after reset
	p.Ingest(45, time.Unix(2000, 0))
	if got := p.EWMA(); got != 45 {
		t.Fatalf("EWMA after reset = %v, want 45", got)
	}
}
