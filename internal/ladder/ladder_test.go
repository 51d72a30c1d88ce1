package ladder

import (
	"errors"
	"testing"
	"time"
)

type fakeStage struct {
	pixelRatio float64
	shadows    bool
	post       bool
	particles  float64
	applies    int
}

func (s *fakeStage) SetPixelRatio(r float64) error         { s.pixelRatio = r; s.applies++; return nil }
func (s *fakeStage) SetShadows(on bool) error              { s.shadows = on; return nil }
func (s *fakeStage) SetPostProcessing(on bool) error       { s.post = on; return nil }
func (s *fakeStage) SetParticleMultiplier(m float64) error { s.particles = m; return nil }

type brokenStage struct{}

func (brokenStage) SetPixelRatio(float64) error         { return errors.New("stage missing") }
func (brokenStage) SetShadows(bool) error               { return errors.New("stage missing") }
func (brokenStage) SetPostProcessing(bool) error        { return errors.New("stage missing") }
func (brokenStage) SetParticleMultiplier(float64) error { return errors.New("stage missing") }

func testConfig() Config {
	return Config{
		Bands: [levelCount]Band{
			{MinFPS: 75, MaxFPS: 240},
			{MinFPS: 60, MaxFPS: 75},
			{MinFPS: 45, MaxFPS: 60},
			{MinFPS: 30, MaxFPS: 45},
			{MinFPS: 20, MaxFPS: 30},
			{MinFPS: 0, MaxFPS: 20},
		},
		DegradationBuffer:     5,
		DegradationDelay:      3 * time.Second,
		RecoveryThreshold:     95,
		RecoveryWindow:        15 * time.Second,
		RecoveryCancelSamples: 1,
		HistoryLimit:          50,
	}
}

// clock drives an injected wall clock in deterministic steps.
type clock struct{ t time.Time }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLadder(t *testing.T, cfg Config, stage Stage) (*Ladder, *clock, *[]Transition) {
	t.Helper()
	var recorded []Transition
	l := New(cfg, stage, func(tr Transition) { recorded = append(recorded, tr) }, nil)
	c := &clock{t: time.Unix(10000, 0)}
	l.now = func() time.Time { return c.t }
	l.lastTransition = c.t
	return l, c, &recorded
}

func TestLadder_EndToEndDegradeThenRecover(t *testing.T) {
	l, c, recorded := newTestLadder(t, testConfig(), &fakeStage{})

	// healthy samples keep the ladder at full quality
	for _, fps := range []float64{80, 78, 82, 79} {
		c.advance(500 * time.Millisecond)
		l.Observe(fps)
	}
	if l.Level() != LevelFull {
		t.Fatalf("healthy samples moved the ladder to %s", l.Level())
	}

	// sustained low samples spread over more than the confirmation delay
	// produce exactly one single-step degrade
	for _, fps := range []float64{40, 38, 41, 39, 37} {
		c.advance(900 * time.Millisecond)
		l.Observe(fps)
	}
	if l.Level() != LevelHigh {
		t.Fatalf("expected S1 after sustained low fps, got %s", l.Level())
	}
	if len(*recorded) != 1 {
		t.Fatalf("expected exactly one transition, got %d: %v", len(*recorded), *recorded)
	}
	tr := (*recorded)[0]
	if tr.From != LevelFull || tr.To != LevelHigh || tr.Cause != CauseDegradation {
		t.Fatalf("unexpected transition record: %+v", tr)
	}
	if tr.FPS >= 45 {
		t.Fatalf("transition should carry the triggering reading, got %v", tr.FPS)
	}

	// sustained readings above the recovery threshold for the full window
	// bring the ladder back up one step
	for i := 0; i < 20; i++ {
		c.advance(time.Second)
		l.Observe(96)
	}
	if l.Level() != LevelFull {
		t.Fatalf("expected recovery to S0, got %s", l.Level())
	}
	last := (*recorded)[len(*recorded)-1]
	if last.From != LevelHigh || last.To != LevelFull || last.Cause != CauseRecovery {
		t.Fatalf("unexpected recovery record: %+v", last)
	}
}

func TestLadder_HysteresisRestartsFromScratch(t *testing.T) {
	l, c, _ := newTestLadder(t, testConfig(), nil)
	l.Force(LevelHigh)

	// open a window, then dip below threshold before it elapses
	c.advance(time.Second)
	l.Observe(97)
	if !l.RecoveryPending() {
		t.Fatal("expected an open recovery window")
	}
	c.advance(10 * time.Second)
	l.Observe(90)
	if l.RecoveryPending() {
		t.Fatal("sub-threshold sample must cancel the window")
	}
	if l.Level() != LevelHigh {
		t.Fatalf("cancelled window must not transition, got %s", l.Level())
	}

	// a fresh sustained period still needs the full window duration
	c.advance(time.Second)
	l.Observe(98) // opens a new window
	c.advance(10 * time.Second)
	l.Observe(98) // only 10s into the new window
	if l.Level() != LevelHigh {
		t.Fatalf("recovery fired before the full window elapsed, level %s", l.Level())
	}
	c.advance(6 * time.Second)
	l.Observe(98)
	if l.Level() != LevelFull {
		t.Fatalf("expected recovery after full window, got %s", l.Level())
	}
}

func TestLadder_DegradeConditionCancelsOpenWindow(t *testing.T) {
	l, c, recorded := newTestLadder(t, testConfig(), nil)
	l.Force(LevelHigh) // band {60,75}, degrade below 55

	c.advance(time.Second)
	l.Observe(97)
	if !l.RecoveryPending() {
		t.Fatal("expected an open recovery window")
	}

	c.advance(time.Second)
	l.Observe(40) // degrade condition: cancels the window, no transition yet
	if l.RecoveryPending() {
		t.Fatal("degrade condition must cancel the open window")
	}
	if l.Level() != LevelHigh {
		t.Fatalf("cancellation sample must not transition, got %s", l.Level())
	}

	// past where the original window would have fired: no late recovery
	c.advance(20 * time.Second)
	l.Observe(70) // neither degrade nor recovery territory
	if l.Level() != LevelHigh || l.RecoveryPending() {
		t.Fatalf("late recovery fired: level %s pending %v", l.Level(), l.RecoveryPending())
	}
	for _, tr := range *recorded {
		if tr.Cause == CauseRecovery {
			t.Fatalf("recorded a recovery that should have been cancelled: %+v", tr)
		}
	}
}

func TestLadder_CancelPolicyRequiresConsecutiveSamples(t *testing.T) {
	cfg := testConfig()
	cfg.RecoveryCancelSamples = 3
	l, c, _ := newTestLadder(t, cfg, nil)
	l.Force(LevelHigh)

	c.advance(time.Second)
	l.Observe(97)
	// two noisy dips are tolerated, the streak resets on an above sample
	c.advance(time.Second)
	l.Observe(90)
	c.advance(time.Second)
	l.Observe(90)
	c.advance(time.Second)
	l.Observe(97)
	if !l.RecoveryPending() {
		t.Fatal("window cancelled before the configured streak was reached")
	}
	// three in a row cancel
	for i := 0; i < 3; i++ {
		c.advance(time.Second)
		l.Observe(90)
	}
	if l.RecoveryPending() {
		return
	}
	t.Fatal("three consecutive sub-threshold samples must cancel the window")
}

func TestLadder_DegradesOneStepAtATime(t *testing.T) {
	l, c, recorded := newTestLadder(t, testConfig(), nil)

	// catastrophic fps never skips levels; each step waits the delay
	for step := 0; step < 5; step++ {
		c.advance(3100 * time.Millisecond)
		l.Observe(2)
		want := Level(step + 1)
		if l.Level() != want {
			t.Fatalf("step %d: level %s, want %s", step, l.Level(), want)
		}
	}
	// at the floor, further bad samples are a no-op
	c.advance(4 * time.Second)
	l.Observe(2)
	if l.Level() != LevelMinimal {
		t.Fatalf("expected floor at S5, got %s", l.Level())
	}
	for i := 1; i < len(*recorded); i++ {
		if (*recorded)[i].To != (*recorded)[i].From+1 {
			t.Fatalf("degrade skipped a level: %+v", (*recorded)[i])
		}
	}
}

func TestLadder_ConfirmationDelayGatesFirstDegrade(t *testing.T) {
	l, c, _ := newTestLadder(t, testConfig(), nil)
	// bad samples immediately after construction are inside the delay
	c.advance(time.Second)
	l.Observe(10)
	c.advance(time.Second)
	l.Observe(10)
	if l.Level() != LevelFull {
		t.Fatalf("degrade fired before the confirmation delay, level %s", l.Level())
	}
	c.advance(2 * time.Second)
	l.Observe(10)
	if l.Level() != LevelHigh {
		t.Fatalf("expected degrade once the delay elapsed, got %s", l.Level())
	}
}

func TestLadder_ForceBypassesDelayAndCancelsWindow(t *testing.T) {
	l, c, recorded := newTestLadder(t, testConfig(), nil)
	l.Force(LevelHigh)
	c.advance(time.Second)
	l.Observe(97)
	if !l.RecoveryPending() {
		t.Fatal("expected an open window")
	}
	l.Force(LevelLow)
	if l.RecoveryPending() {
		t.Fatal("forced transition must cancel the open window")
	}
	if l.Level() != LevelLow {
		t.Fatalf("forced level = %s, want S4", l.Level())
	}
	last := (*recorded)[len(*recorded)-1]
	if last.Cause != CauseForced {
		t.Fatalf("forced transition recorded as %s", last.Cause)
	}
}

func TestLadder_PinnedIgnoresObservations(t *testing.T) {
	l, c, _ := newTestLadder(t, testConfig(), nil)
	l.Pin(LevelLow)
	if !l.Pinned() || l.Level() != LevelLow {
		t.Fatalf("pin failed: pinned=%v level=%s", l.Pinned(), l.Level())
	}
	for i := 0; i < 30; i++ {
		c.advance(time.Second)
		l.Observe(120) // would otherwise recover
	}
	if l.Level() != LevelLow {
		t.Fatalf("pinned ladder moved to %s", l.Level())
	}

	l.Unpin()
	// delay restarts on unpin, then automatic movement resumes
	c.advance(time.Second)
	l.Observe(97)
	c.advance(16 * time.Second)
	l.Observe(97)
	if l.Level() != LevelReduced {
		t.Fatalf("expected one recovery step after unpin, got %s", l.Level())
	}
}

func TestLadder_ApplyPushesRenderConfig(t *testing.T) {
	stage := &fakeStage{}
	l, c, _ := newTestLadder(t, testConfig(), stage)
	l.Apply()
	if stage.pixelRatio != 2.0 || !stage.shadows || !stage.post || stage.particles != 1.0 {
		t.Fatalf("startup apply pushed wrong config: %+v", stage)
	}
	c.advance(4 * time.Second)
	l.Observe(10)
	rc := RenderConfigFor(LevelHigh)
	if stage.pixelRatio != rc.PixelRatio || stage.particles != rc.ParticleMultiplier {
		t.Fatalf("transition did not apply S1 config: %+v", stage)
	}
}

func TestLadder_StageErrorsAreNonFatal(t *testing.T) {
	l, c, recorded := newTestLadder(t, testConfig(), brokenStage{})
	c.advance(4 * time.Second)
	l.Observe(10)
	if l.Level() != LevelHigh {
		t.Fatalf("stage failure blocked the transition, level %s", l.Level())
	}
	if len(*recorded) != 1 {
		t.Fatalf("stage failure corrupted history: %v", *recorded)
	}
}

func TestLadder_HistoryIsCapped(t *testing.T) {
	cfg := testConfig()
	cfg.HistoryLimit = 4
	l, _, _ := newTestLadder(t, cfg, nil)
	levels := []Level{LevelHigh, LevelMedium, LevelReduced, LevelLow, LevelMinimal, LevelFull}
	for _, lv := range levels {
		l.Force(lv)
	}
	h := l.History()
	if len(h) != 4 {
		t.Fatalf("history length = %d, want 4", len(h))
	}
	if h[0].To != LevelReduced {
		t.Fatalf("oldest entries must drop first, head is %+v", h[0])
	}
}
