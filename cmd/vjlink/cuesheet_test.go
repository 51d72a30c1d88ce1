package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"vjlink/internal/cuesheet"
	"vjlink/internal/protocol"
	"vjlink/internal/transport"
)

type recordedMessages struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (r *recordedMessages) add(m protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recordedMessages) types() []protocol.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Type, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func TestResolveSheetBuiltIn(t *testing.T) {
	s, err := resolveSheet("warmup")
	if err != nil {
		t.Fatalf("resolveSheet: %v", err)
	}
	if len(s.Phases) == 0 {
		t.Fatal("built-in sheet has no phases")
	}
}

func TestResolveSheetMissing(t *testing.T) {
	if _, err := resolveSheet("no-such-sheet.yaml"); err == nil {
		t.Fatal("expected error for unknown sheet")
	}
}

func TestRunSheetAdvancesOnLevel(t *testing.T) {
	sheet := &cuesheet.Sheet{
		Phases: []cuesheet.Phase{
			{
				Name:     "strobe",
				Scene:    "strobe",
				Triggers: []cuesheet.Trigger{{Event: "level_reached", Value: 3, Next: "winddown"}},
			},
			{Name: "winddown", Scene: "waves"},
		},
	}

	bus := transport.NewBus()
	driver := bus.Endpoint()
	receiver := bus.Endpoint()

	rec := &recordedMessages{}
	receiver.OnMessage(rec.add)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runSheet(ctx, sheet, driver, log, time.Hour) }()

	// Wait for the opening phase's scene command before reporting the level.
	deadline := time.After(2 * time.Second)
	for len(rec.types()) == 0 {
		select {
		case <-deadline:
			t.Fatal("opening phase commands never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}

	stats := protocol.New(protocol.TypePerformanceStats)
	stats.Level = protocol.Int(3)
	receiver.Send(stats)

	if err := <-done; err != nil {
		t.Fatalf("runSheet returned error: %v", err)
	}

	types := rec.types()
	var scenes []string
	rec.mu.Lock()
	for _, m := range rec.msgs {
		if m.Type == protocol.TypeSceneChange {
			scenes = append(scenes, m.Scene)
		}
	}
	rec.mu.Unlock()
	if len(scenes) != 2 || scenes[0] != "strobe" || scenes[1] != "waves" {
		t.Fatalf("expected strobe then waves scene commands, got %v (all types %v)", scenes, types)
	}
}

func TestRunSheetAdvancesOnTime(t *testing.T) {
	sheet := &cuesheet.Sheet{
		Phases: []cuesheet.Phase{
			{
				Name:     "open",
				Scene:    "waves",
				Triggers: []cuesheet.Trigger{{Event: "time_elapsed", Value: 0, Next: "close"}},
			},
			{Name: "close", Scene: "matrix", Message: "GOODNIGHT"},
		},
	}

	bus := transport.NewBus()
	driver := bus.Endpoint()
	receiver := bus.Endpoint()

	rec := &recordedMessages{}
	receiver.OnMessage(rec.add)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runSheet(ctx, sheet, driver, log, 5*time.Millisecond); err != nil {
		t.Fatalf("runSheet returned error: %v", err)
	}

	types := rec.types()
	last := types[len(types)-1]
	if last != protocol.TypeMatrixMessage {
		t.Fatalf("final phase must end with its matrix message, got %v", types)
	}
}
