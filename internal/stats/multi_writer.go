package stats

// MultiWriter fan-outs performance and transition rows to multiple writers.
type MultiWriter struct {
	perfWriters  []PerfWriter
	transWriters []TransitionWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(pws []PerfWriter, tws []TransitionWriter) *MultiWriter {
	return &MultiWriter{perfWriters: pws, transWriters: tws}
}

// Write sends a performance row to all writers.
func (mw *MultiWriter) Write(row PerfRow) error {
	for _, w := range mw.perfWriters {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple performance rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []PerfRow) error {
	for _, w := range mw.perfWriters {
		if bw, ok := w.(batchPerfWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteTransition sends a transition row to all transition writers.
func (mw *MultiWriter) WriteTransition(row TransitionRow) error {
	for _, w := range mw.transWriters {
		if err := w.WriteTransition(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteTransitions sends multiple transitions to all writers, using batch if supported.
func (mw *MultiWriter) WriteTransitions(rows []TransitionRow) error {
	for _, w := range mw.transWriters {
		if bw, ok := w.(batchTransitionWriter); ok {
			if err := bw.WriteTransitions(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteTransition(r); err != nil {
				return err
			}
		}
	}
	return nil
}
