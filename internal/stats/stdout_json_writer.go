package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONStdoutWriter prints performance and transition rows as JSON to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs a performance row in JSON format.
func (w *JSONStdoutWriter) Write(row PerfRow) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteBatch outputs multiple performance rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []PerfRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteTransition outputs a quality transition in JSON format.
func (w *JSONStdoutWriter) WriteTransition(row TransitionRow) error {
	data, _ := json.Marshal(row)
	fmt.Fprintln(w.out, string(data))
	return nil
}

// WriteTransitions outputs multiple quality transitions in JSON format.
func (w *JSONStdoutWriter) WriteTransitions(rows []TransitionRow) error {
	for _, r := range rows {
		_ = w.WriteTransition(r)
	}
	return nil
}
