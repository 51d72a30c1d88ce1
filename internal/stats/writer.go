package stats

// PerfWriter handles performance rows.
type PerfWriter interface {
	Write(PerfRow) error
}

// TransitionWriter handles quality-transition rows.
type TransitionWriter interface {
	WriteTransition(TransitionRow) error
}

// Optional: writers may support batch mode for performance rows.
type batchPerfWriter interface {
	WriteBatch([]PerfRow) error
}

// Optional: writers may support batch mode for transition rows.
type batchTransitionWriter interface {
	WriteTransitions([]TransitionRow) error
}
