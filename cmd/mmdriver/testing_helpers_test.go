package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// testTracePath returns the path to a trace shipped with the trace package
func testTracePath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("..", "..", "internal", "trace", "testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("test trace not found: %s", path)
	}
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}

	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	return buf.String(), fnErr
}

// resetFlags restores every global flag to its default
func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	backendName = "slice"
	pageSize = 4096
	maxHeapSize = 0
	runCheck = false
	mapDetailed = true
}
