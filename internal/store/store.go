package store

// Store persists finished solver runs so they can be inspected or resumed.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound (as *NotFoundError) if a run doesn't exist (Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically writes the record for runID, replacing any
	// previous one.
	SaveRun(runID string, record *RunRecord) error

	// LoadRun returns the record for runID.
	LoadRun(runID string) (*RunRecord, error)

	// ListRuns returns metadata for all readable runs. Corrupted records
	// are skipped.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run directory, including its trace.
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
