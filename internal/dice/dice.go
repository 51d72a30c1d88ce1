// Random matrix-message scheduling with a request/ack pending state.
package dice

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"vjlink/internal/protocol"
	"vjlink/internal/transport"
)

// PendingDisplay is what the local UI shows while a sent matrix message has
// not yet been confirmed by the remote side.
const PendingDisplay = "PENDING"

// Config tunes the scheduler.
type Config struct {
	Period    time.Duration // countdown between rolls
	Threshold int           // a roll must exceed this to fire, 1..99
	Pool      []string      // messages to pick from
}

// Scheduler rolls a d100 every period and, on a roll above the threshold,
// sends a random pooled matrix message. The message stays PENDING locally
// until the remote matrix_message_displayed ack arrives; no further rolls
// fire while one is outstanding. This is the one place remote latency is
// made visible to the operator.
type Scheduler struct {
	cfg Config
	tr  transport.Transport
	log *slog.Logger

	mu          sync.Mutex
	pending     bool
	pendingText string
	lastShown   string
	lastRoll    int

	rng *rand.Rand
	now func() time.Time
}

// New creates a scheduler. tr may be nil when the caller sends the rolled
// messages itself through Roll.
func New(cfg Config, tr transport.Transport, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Period <= 0 {
		cfg.Period = 15 * time.Second
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 100 {
		cfg.Threshold = 90
	}
	if len(cfg.Pool) == 0 {
		cfg.Pool = []string{"SIGNAL LOST", "REALITY.EXE", "WAKE UP", "SYSTEM OVERRIDE"}
	}
	return &Scheduler{
		cfg: cfg,
		tr:  tr,
		log: log,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// Run rolls every period until ctx is done, sending fired messages over the
// transport.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if m := s.Roll(); m != nil && s.tr != nil {
				s.tr.Send(*m)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Roll performs one countdown expiry: draws 1–100 and, when the draw beats
// the threshold and nothing is pending, returns the matrix message to send.
// Returns nil when the roll loses or an earlier message is still unacked.
func (s *Scheduler) Roll() *protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return nil
	}
	roll := s.rng.Intn(100) + 1
	s.lastRoll = roll
	if roll <= s.cfg.Threshold {
		return nil
	}
	text := s.cfg.Pool[s.rng.Intn(len(s.cfg.Pool))]
	m := protocol.New(protocol.TypeMatrixMessage)
	m.Text = text
	m.Roll = roll
	s.pending = true
	s.pendingText = text
	s.log.Info("dice fired", "roll", roll, "message", text)
	return &m
}

// Track marks a manually sent matrix message as pending so the display
// shows PENDING until its ack arrives.
func (s *Scheduler) Track(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = true
	s.pendingText = text
}

// OnAck clears the pending state when the displayed confirmation arrives.
// Non-matrix acks are ignored.
func (s *Scheduler) OnAck(m protocol.Message) {
	if m.Type != protocol.TypeMatrixMessageDisplayed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return
	}
	s.pending = false
	shown := m.Text
	if shown == "" {
		shown = s.pendingText
	}
	s.lastShown = shown
	s.pendingText = ""
}

// Display returns what the local matrix readout should show: PENDING while
// a message is unacked, otherwise the last confirmed text.
func (s *Scheduler) Display() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return PendingDisplay
	}
	return s.lastShown
}

// Pending reports whether a matrix message is awaiting its ack.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// LastRoll returns the most recent draw, zero before the first roll.
func (s *Scheduler) LastRoll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRoll
}
