package dice

import (
	"math/rand"
	"testing"
	"time"

	"vjlink/internal/protocol"
)

func newTestScheduler(seed int64) *Scheduler {
	s := New(Config{
		Period:    15 * time.Second,
		Threshold: 90,
		Pool:      []string{"ALPHA", "BETA", "GAMMA"},
	}, nil, nil)
	s.rng = rand.New(rand.NewSource(seed))
	return s
}

// rollUntilFired drives Roll until a message fires, bounded so a bad seed
// fails loudly instead of spinning.
func rollUntilFired(t *testing.T, s *Scheduler) *protocol.Message {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if m := s.Roll(); m != nil {
			return m
		}
	}
	t.Fatal("scheduler never fired in 1000 rolls")
	return nil
}

func TestRoll_FiresOnlyAboveThreshold(t *testing.T) {
	s := newTestScheduler(1)
	for i := 0; i < 1000; i++ {
		m := s.Roll()
		roll := s.LastRoll()
		if roll < 1 || roll > 100 {
			t.Fatalf("roll %d outside 1..100", roll)
		}
		if m != nil {
			if roll <= 90 {
				t.Fatalf("fired on roll %d at threshold 90", roll)
			}
			if m.Type != protocol.TypeMatrixMessage || m.Text == "" || m.Roll != roll {
				t.Fatalf("malformed fired message: %+v", m)
			}
			s.OnAck(protocol.Message{Type: protocol.TypeMatrixMessageDisplayed, Text: m.Text})
		} else if roll > 90 && !s.Pending() {
			t.Fatalf("roll %d above threshold did not fire", roll)
		}
	}
}

func TestRoll_PicksFromPool(t *testing.T) {
	s := newTestScheduler(2)
	m := rollUntilFired(t, s)
	switch m.Text {
	case "ALPHA", "BETA", "GAMMA":
	default:
		t.Fatalf("message %q not from the pool", m.Text)
	}
}

func TestRoll_SuppressedWhilePending(t *testing.T) {
	s := newTestScheduler(3)
	rollUntilFired(t, s)
	if !s.Pending() {
		t.Fatal("expected pending after fire")
	}
	for i := 0; i < 100; i++ {
		if m := s.Roll(); m != nil {
			t.Fatalf("rolled a second message while pending: %+v", m)
		}
	}
}

func TestDisplay_PendingUntilAck(t *testing.T) {
	s := newTestScheduler(4)
	if s.Display() != "" {
		t.Fatalf("fresh scheduler displays %q", s.Display())
	}
	m := rollUntilFired(t, s)
	if s.Display() != PendingDisplay {
		t.Fatalf("display = %q while unacked, want %s", s.Display(), PendingDisplay)
	}

	// a send alone never clears pending, only the remote ack does
	s.OnAck(protocol.Message{Type: protocol.TypePong})
	if s.Display() != PendingDisplay {
		t.Fatal("non-matrix ack cleared the pending state")
	}

	s.OnAck(protocol.Message{Type: protocol.TypeMatrixMessageDisplayed, Text: m.Text})
	if s.Pending() {
		t.Fatal("ack did not clear pending")
	}
	if s.Display() != m.Text {
		t.Fatalf("display = %q after ack, want %q", s.Display(), m.Text)
	}
}

func TestTrack_ManualSendShowsPending(t *testing.T) {
	s := newTestScheduler(5)
	s.Track("TEST")
	if s.Display() != PendingDisplay {
		t.Fatalf("display = %q, want %s", s.Display(), PendingDisplay)
	}
	s.OnAck(protocol.Message{Type: protocol.TypeMatrixMessageDisplayed})
	if s.Display() != "TEST" {
		t.Fatalf("display = %q after ack without echo, want TEST", s.Display())
	}
}

func TestOnAck_IdempotentWhenNothingPending(t *testing.T) {
	s := newTestScheduler(6)
	s.OnAck(protocol.Message{Type: protocol.TypeMatrixMessageDisplayed, Text: "STRAY"})
	if s.Pending() || s.Display() != "" {
		t.Fatalf("stray ack mutated state: pending=%v display=%q", s.Pending(), s.Display())
	}
}
