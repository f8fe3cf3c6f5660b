package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/proxgrad/internal/problem"
	"github.com/cwbudde/proxgrad/internal/solver"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

// createTestRun creates a run record with test data.
func createTestRun(runID string) *RunRecord {
	return &RunRecord{
		RunID:            runID,
		X:                []float64{1.475, 0, -1.9},
		Objective:        -4.6,
		InitialObjective: 12.5,
		Status:           solver.StatusConverged,
		Reason:           solver.ReasonGradientMapping,
		Iterations:       57,
		FunEvals:         70,
		ProxEvals:        71,
		Elapsed:          3 * time.Millisecond,
		Timestamp:        time.Now(),
		Config: RunConfig{
			ProblemPath: "problems/lasso.yaml",
			Problem: problem.Spec{
				Name:   "small-lasso",
				Kind:   problem.KindLasso,
				A:      [][]float64{{2, 0, 0}, {0, 1, 0}, {0, 0, 1}},
				B:      []float64{3, 0.05, -2},
				Lambda: 0.1,
				Options: map[string]interface{}{
					"tol_f": 0.0,
				},
			},
		},
	}
}

func TestNewFSStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store.BaseDir() != dir {
		t.Errorf("BaseDir = %s, want %s", store.BaseDir(), dir)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	runID := "run-123"
	record := createTestRun(runID)
	if err := store.SaveRun(runID, record); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "runs", runID, "run.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Run file was not created at %s", expectedPath)
	}
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file was left behind")
	}

	loaded, err := store.LoadRun(runID)
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if loaded.RunID != runID {
		t.Errorf("RunID = %s, want %s", loaded.RunID, runID)
	}
	if len(loaded.X) != 3 || loaded.X[0] != 1.475 || loaded.X[2] != -1.9 {
		t.Errorf("X = %v, want %v", loaded.X, record.X)
	}
	if loaded.Status != solver.StatusConverged || loaded.Reason != solver.ReasonGradientMapping {
		t.Errorf("Status/Reason = %s/%s", loaded.Status, loaded.Reason)
	}
	if loaded.Elapsed != record.Elapsed {
		t.Errorf("Elapsed = %v, want %v", loaded.Elapsed, record.Elapsed)
	}
	if loaded.Config.Problem.Kind != problem.KindLasso || loaded.Config.Problem.Lambda != 0.1 {
		t.Errorf("Problem spec not preserved: %+v", loaded.Config.Problem)
	}
	if !loaded.Timestamp.Equal(record.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", loaded.Timestamp, record.Timestamp)
	}

	// The embedded spec must still build and accept its options.
	if _, err := loaded.Config.Problem.Build(); err != nil {
		t.Errorf("Embedded problem does not build: %v", err)
	}
}

func TestSaveRun_Overwrites(t *testing.T) {
	store, _ := setupTestStore(t)

	record := createTestRun("run-1")
	if err := store.SaveRun("run-1", record); err != nil {
		t.Fatal(err)
	}
	record.Iterations = 99
	if err := store.SaveRun("run-1", record); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Iterations != 99 {
		t.Errorf("Iterations = %d, want 99", loaded.Iterations)
	}
}

func TestSaveRun_Rejects(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveRun("", createTestRun("x")); err == nil {
		t.Error("Expected error for empty runID")
	}
	if err := store.SaveRun("x", nil); err == nil {
		t.Error("Expected error for nil record")
	}

	bad := createTestRun("x")
	bad.X = nil
	var verr *ValidationError
	if err := store.SaveRun("x", bad); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestLoadRun_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadRun("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.RunID != "missing" {
		t.Errorf("Expected NotFoundError for 'missing', got %v", err)
	}
}

func TestLoadRun_Corrupted(t *testing.T) {
	store, tempDir := setupTestStore(t)

	dir := filepath.Join(tempDir, "runs", "broken")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.LoadRun("broken"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected a decode error, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	store, tempDir := setupTestStore(t)

	infos, err := store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns on empty store failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("Expected no runs, got %d", len(infos))
	}

	older := createTestRun("older")
	older.Timestamp = time.Now().Add(-time.Hour)
	newer := createTestRun("newer")
	for _, r := range []*RunRecord{older, newer} {
		if err := store.SaveRun(r.RunID, r); err != nil {
			t.Fatal(err)
		}
	}

	// A directory with only a trace and a corrupted record are both skipped.
	tw, err := NewTraceWriter(tempDir, "in-progress", false)
	if err != nil {
		t.Fatal(err)
	}
	tw.Close()
	if err := os.MkdirAll(filepath.Join(tempDir, "runs", "broken"), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(tempDir, "runs", "broken", "run.json"), []byte("]"), 0644)

	infos, err = store.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(infos))
	}
	if infos[0].RunID != "newer" || infos[1].RunID != "older" {
		t.Errorf("Expected newest first, got %s, %s", infos[0].RunID, infos[1].RunID)
	}
	if infos[0].Name != "small-lasso" || infos[0].Kind != problem.KindLasso {
		t.Errorf("Unexpected info: %+v", infos[0])
	}
}

func TestDeleteRun(t *testing.T) {
	store, tempDir := setupTestStore(t)

	if err := store.SaveRun("run-1", createTestRun("run-1")); err != nil {
		t.Fatal(err)
	}
	tw, err := NewTraceWriter(tempDir, "run-1", false)
	if err != nil {
		t.Fatal(err)
	}
	tw.Write(solver.IterationRecord{Iteration: 0, Objective: 1, StepSize: 1})
	tw.Close()

	if err := store.DeleteRun("run-1"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "runs", "run-1")); !os.IsNotExist(err) {
		t.Error("Run directory still exists")
	}
	if err := store.DeleteRun("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStoreInterface(t *testing.T) {
	var _ Store = (*FSStore)(nil)
}
