package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/proxgrad/internal/problem"
	"github.com/cwbudde/proxgrad/internal/solver"
	"github.com/cwbudde/proxgrad/internal/store"
)

func testRecord(runID string, ts time.Time) *store.RunRecord {
	return &store.RunRecord{
		RunID:      runID,
		X:          []float64{1, 2},
		Objective:  0.5,
		Status:     solver.StatusConverged,
		Iterations: 10,
		Timestamp:  ts,
		Config: store.RunConfig{
			Problem: problem.Spec{
				Name: "test",
				Kind: problem.KindQuadratic,
				A:    [][]float64{{1, 0}, {0, 1}},
				B:    []float64{1, 2},
			},
		},
	}
}

func withDataDir(t *testing.T, dir string) {
	t.Helper()
	original := dataDir
	dataDir = dir
	t.Cleanup(func() { dataDir = original })
}

func captureCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	toDelete := selectRunsForDeletion(infos, 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if toDelete[0].RunID != "run1" || toDelete[1].RunID != "run4" {
		t.Errorf("Expected run1 and run4 to be selected, got %v", toDelete)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 2, 0, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	// Oldest two go: run1 (10 days) then run4 (30 days).
	if toDelete[0].RunID != "run1" || toDelete[1].RunID != "run4" {
		t.Errorf("Expected run1 and run4 to be selected (oldest), got %v", toDelete)
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{RunID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{RunID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{RunID: "run4", Timestamp: now.AddDate(0, 0, -30)},
		{RunID: "run5", Timestamp: now.AddDate(0, 0, -2)},
	}

	// Age selects run1 and run4; keeping 2 additionally drops run2.
	toDelete := selectRunsForDeletion(infos, 2, 7, now)

	if len(toDelete) != 3 {
		t.Fatalf("Expected 3 runs to delete, got %d", len(toDelete))
	}
	seen := map[string]bool{}
	for _, info := range toDelete {
		if seen[info.RunID] {
			t.Errorf("Run %s selected twice", info.RunID)
		}
		seen[info.RunID] = true
	}
	if !seen["run1"] || !seen["run2"] || !seen["run4"] {
		t.Errorf("Unexpected selection %v", toDelete)
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestRunsListCommand_NoRuns(t *testing.T) {
	withDataDir(t, t.TempDir())
	cmd, out := captureCmd()

	if err := runListRuns(cmd, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "No runs found") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestRunsListCommand_WithRuns(t *testing.T) {
	tmpDir := t.TempDir()
	runs, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := runs.SaveRun("test-run-id", testRecord("test-run-id", time.Now())); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	withDataDir(t, tmpDir)
	cmd, out := captureCmd()

	if err := runListRuns(cmd, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), "test-run-id") || !strings.Contains(out.String(), "Total runs: 1") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestRunsShowCommand(t *testing.T) {
	tmpDir := t.TempDir()
	runs, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := runs.SaveRun("shown", testRecord("shown", time.Now())); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	withDataDir(t, tmpDir)
	cmd, out := captureCmd()

	if err := runShowRun(cmd, []string{"shown"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out.String(), `"runId": "shown"`) {
		t.Errorf("Unexpected output %q", out.String())
	}

	if err := runShowRun(cmd, []string{"missing"}); err == nil {
		t.Error("Expected error for missing run")
	}
}

func TestRunsCleanCommand_NoFlags(t *testing.T) {
	withDataDir(t, t.TempDir())

	keepLast = 0
	olderThanDays = 0

	if err := runCleanRuns(nil, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestRunsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()
	runs, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := runs.SaveRun("old-run", testRecord("old-run", time.Now().AddDate(0, 0, -30))); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := runs.SaveRun("new-run", testRecord("new-run", time.Now())); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	withDataDir(t, tmpDir)
	keepLast = 0
	olderThanDays = 7
	forceClean = true
	defer func() { olderThanDays, forceClean = 0, false }()

	cmd, _ := captureCmd()
	if err := runCleanRuns(cmd, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if _, err := runs.LoadRun("old-run"); err == nil {
		t.Error("Expected old run to be deleted")
	}
	if _, err := runs.LoadRun("new-run"); err != nil {
		t.Errorf("New run should survive: %v", err)
	}
}
