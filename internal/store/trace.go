package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cwbudde/proxgrad/internal/solver"
)

// TraceWriter appends iteration records to <baseDir>/runs/<runID>/trace.jsonl,
// one JSON object per line. It is safe for concurrent use.
type TraceWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	count  int
}

// TracePath returns the trace file location for a run.
func TracePath(baseDir, runID string) string {
	return filepath.Join(runDir(baseDir, runID), "trace.jsonl")
}

// NewTraceWriter creates a trace writer for the given run. If append is
// true, new records are added after the existing ones.
func NewTraceWriter(baseDir, runID string, append bool) (*TraceWriter, error) {
	if err := os.MkdirAll(runDir(baseDir, runID), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := TracePath(baseDir, runID)
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write buffers one record. It is written out on Flush or Close.
func (tw *TraceWriter) Write(rec solver.IterationRecord) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal trace record: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace record: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	tw.count++
	return nil
}

// Recorder adapts the writer to solver.Options.Recorder. Write errors are
// remembered and reported by Close, since the solver cannot act on them.
func (tw *TraceWriter) Recorder() (func(solver.IterationRecord), func() error) {
	var first error
	rec := func(r solver.IterationRecord) {
		if err := tw.Write(r); err != nil && first == nil {
			first = err
		}
	}
	closeFn := func() error {
		if err := tw.Close(); err != nil {
			return err
		}
		return first
	}
	return rec, closeFn
}

// Count returns the number of records written so far.
func (tw *TraceWriter) Count() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.count
}

// Flush writes buffered records and syncs the file.
func (tw *TraceWriter) Flush() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}
	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the trace file.
func (tw *TraceWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// TraceReader reads iteration records from a trace file.
type TraceReader struct {
	file    *os.File
	scanner *bufio.Scanner
}

// NewTraceReader opens the trace of the given run.
func NewTraceReader(baseDir, runID string) (*TraceReader, error) {
	file, err := os.Open(TracePath(baseDir, runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &TraceReader{file: file, scanner: scanner}, nil
}

// Read returns the next record, or io.EOF at the end of the trace.
func (tr *TraceReader) Read() (*solver.IterationRecord, error) {
	if !tr.scanner.Scan() {
		if err := tr.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan trace line: %w", err)
		}
		return nil, io.EOF
	}

	var rec solver.IterationRecord
	if err := json.Unmarshal(tr.scanner.Bytes(), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace record: %w", err)
	}
	return &rec, nil
}

// ReadAll reads every remaining record.
func (tr *TraceReader) ReadAll() ([]solver.IterationRecord, error) {
	records := []solver.IterationRecord{}
	for {
		rec, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Close closes the trace reader.
func (tr *TraceReader) Close() error {
	if err := tr.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// ReadTrace loads the whole trace of a run.
func ReadTrace(baseDir, runID string) ([]solver.IterationRecord, error) {
	tr, err := NewTraceReader(baseDir, runID)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	return tr.ReadAll()
}

// DeleteTrace removes the trace file for the given run.
// Returns nil if the file doesn't exist.
func DeleteTrace(baseDir, runID string) error {
	err := os.Remove(TracePath(baseDir, runID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trace file: %w", err)
	}
	return nil
}
