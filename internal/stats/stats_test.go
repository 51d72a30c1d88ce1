package stats

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type collectWriter struct {
	rows    []PerfRow
	trans   []TransitionRow
	batched int
}

func (c *collectWriter) Write(r PerfRow) error {
	c.rows = append(c.rows, r)
	return nil
}

func (c *collectWriter) WriteTransition(r TransitionRow) error {
	c.trans = append(c.trans, r)
	return nil
}

// batchCollectWriter additionally implements the optional batch interfaces.
type batchCollectWriter struct{ collectWriter }

func (c *batchCollectWriter) WriteBatch(rows []PerfRow) error {
	c.batched++
	c.rows = append(c.rows, rows...)
	return nil
}

func TestFileWriter(t *testing.T) {
	dir := t.TempDir()
	ts := time.Unix(0, 0).UTC()
	pRow := PerfRow{
		InstallationID: "club-main",
		Channel:        "vj_control",
		FPS:            58.4,
		EffectiveFPS:   55.1,
		Memory:         412.5,
		DOMNodes:       1200,
		Level:          1,
		Timestamp:      ts,
	}
	tRow := TransitionRow{
		InstallationID: "club-main",
		Channel:        "vj_control",
		FromLevel:      0,
		ToLevel:        1,
		Cause:          "degradation",
		FPS:            38,
		Timestamp:      ts,
	}

	perfPath := filepath.Join(dir, "perf.json")
	transPath := filepath.Join(dir, "transitions.json")
	fw, err := NewFileWriter(perfPath, transPath)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	if err := fw.Write(pRow); err != nil {
		t.Fatalf("write perf: %v", err)
	}
	if err := fw.WriteTransition(tRow); err != nil {
		t.Fatalf("write transition: %v", err)
	}
	fw.Close()

	data, err := os.ReadFile(perfPath)
	if err != nil {
		t.Fatalf("read perf file: %v", err)
	}
	var gotPerf PerfRow
	if err := json.Unmarshal(data, &gotPerf); err != nil {
		t.Fatalf("decode perf: %v", err)
	}
	if gotPerf.FPS != pRow.FPS || gotPerf.EffectiveFPS != pRow.EffectiveFPS || gotPerf.Level != pRow.Level {
		t.Fatalf("unexpected perf row: %#v", gotPerf)
	}

	data, err = os.ReadFile(transPath)
	if err != nil {
		t.Fatalf("read transition file: %v", err)
	}
	var gotTrans TransitionRow
	if err := json.Unmarshal(data, &gotTrans); err != nil {
		t.Fatalf("decode transition: %v", err)
	}
	if gotTrans.Cause != tRow.Cause || gotTrans.ToLevel != tRow.ToLevel {
		t.Fatalf("unexpected transition row: %#v", gotTrans)
	}
}

func TestFileWriter_TransitionLogOptional(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(filepath.Join(dir, "perf.json"), "")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()
	if err := fw.WriteTransition(TransitionRow{Cause: "forced"}); err != nil {
		t.Fatalf("transition write without a log must be a no-op, got %v", err)
	}
}

func TestMultiWriter_FansOut(t *testing.T) {
	a := &collectWriter{}
	b := &collectWriter{}
	mw := NewMultiWriter([]PerfWriter{a, b}, []TransitionWriter{a, b})

	mw.Write(PerfRow{FPS: 60})
	mw.WriteTransition(TransitionRow{Cause: "recovery"})

	for i, w := range []*collectWriter{a, b} {
		if len(w.rows) != 1 || len(w.trans) != 1 {
			t.Fatalf("writer %d: rows=%d trans=%d", i, len(w.rows), len(w.trans))
		}
	}
}

func TestMultiWriter_UsesBatchWhenSupported(t *testing.T) {
	plain := &collectWriter{}
	batch := &batchCollectWriter{}
	mw := NewMultiWriter([]PerfWriter{plain, batch}, nil)

	rows := []PerfRow{{FPS: 60}, {FPS: 58}, {FPS: 55}}
	if err := mw.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if len(plain.rows) != 3 || len(batch.rows) != 3 {
		t.Fatalf("rows not delivered: plain=%d batch=%d", len(plain.rows), len(batch.rows))
	}
	if batch.batched != 1 {
		t.Fatalf("batch-capable writer called %d times in batch mode, want 1", batch.batched)
	}
}

func TestJSONStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONStdoutWriter{out: &buf}
	w.Write(PerfRow{InstallationID: "club-main", FPS: 60})
	w.WriteTransition(TransitionRow{Cause: "forced"})

	dec := json.NewDecoder(&buf)
	var perf PerfRow
	if err := dec.Decode(&perf); err != nil || perf.FPS != 60 {
		t.Fatalf("perf line: %v %+v", err, perf)
	}
	var trans TransitionRow
	if err := dec.Decode(&trans); err != nil || trans.Cause != "forced" {
		t.Fatalf("transition line: %v %+v", err, trans)
	}
}

func TestReplayLog(t *testing.T) {
	rows := []PerfRow{
		{InstallationID: "club-main", FPS: 60, Timestamp: time.Unix(0, 0)},
		{InstallationID: "club-main", FPS: 42, Timestamp: time.Unix(1, 0)},
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	cw := &collectWriter{}
	if err := ReplayLog(&buf, cw, 0); err != nil {
		t.Fatalf("ReplayLog: %v", err)
	}
	if len(cw.rows) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(cw.rows))
	}
	for i, r := range rows {
		if cw.rows[i].FPS != r.FPS {
			t.Fatalf("row %d mismatch: %+v vs %+v", i, cw.rows[i], r)
		}
	}
}
