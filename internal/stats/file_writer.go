package stats

import (
	"encoding/json"
	"os"
)

// FileWriter writes performance and transition rows to JSONL files.
type FileWriter struct {
	perfFile  *os.File
	transFile *os.File
	perfEnc   *json.Encoder
	transEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. transitionPath may be empty to skip
// the transition log.
func NewFileWriter(perfPath, transitionPath string) (*FileWriter, error) {
	pf, err := os.Create(perfPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{perfFile: pf, perfEnc: json.NewEncoder(pf)}
	if transitionPath != "" {
		tf, err := os.Create(transitionPath)
		if err != nil {
			pf.Close()
			return nil, err
		}
		fw.transFile = tf
		fw.transEnc = json.NewEncoder(tf)
	}
	return fw, nil
}

// Write logs a single performance row.
func (f *FileWriter) Write(row PerfRow) error {
	return f.perfEnc.Encode(row)
}

// WriteBatch logs multiple performance rows.
func (f *FileWriter) WriteBatch(rows []PerfRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteTransition logs a single transition row, if enabled.
func (f *FileWriter) WriteTransition(row TransitionRow) error {
	if f.transEnc == nil {
		return nil
	}
	return f.transEnc.Encode(row)
}

// WriteTransitions logs multiple transition rows.
func (f *FileWriter) WriteTransitions(rows []TransitionRow) error {
	for _, r := range rows {
		if err := f.WriteTransition(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.perfFile != nil {
		if e := f.perfFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.transFile != nil {
		if e := f.transFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
