// Package sidefile records the reports the pipeline diverted instead of
// loading, one JSON object per line. The file is append-only so repeated runs
// against the same path accumulate; a line is written before the record is
// dropped, never after.
package sidefile

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Entry is one diverted report.
type Entry struct {
	SafetyReportID string `json:"safetyreportid"`
	Reason         string `json:"reason"`
}

// Writer appends entries to a JSON-lines file. Safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
	n    int
}

// Open opens (or creates) the side file at path for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open side file %s: %w", path, err)
	}
	return &Writer{f: f, enc: json.NewEncoder(f), path: path}, nil
}

// Record appends one entry.
func (w *Writer) Record(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("write side file %s: %w", w.path, err)
	}
	w.n++
	return nil
}

// Count reports how many entries this writer has appended.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func (w *Writer) Close() error {
	return w.f.Close()
}
