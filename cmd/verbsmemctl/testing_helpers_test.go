package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/joshuapare/verbsmem/forksafe"
	"github.com/joshuapare/verbsmem/internal/anonmap"
	"github.com/joshuapare/verbsmem/internal/config"
)

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

// testSession builds a session without touching config files or the environment.
func testSession(t *testing.T) *session {
	t.Helper()
	return &session{
		cfg:      config.Default(),
		tracker:  forksafe.New(forksafe.Options{Enabled: true}),
		pageSize: anonmap.PageSize(),
	}
}

// setJSON toggles the global --json flag for the duration of a test.
func setJSON(t *testing.T, on bool) {
	t.Helper()
	prev := jsonOut
	jsonOut = on
	t.Cleanup(func() { jsonOut = prev })
}

func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("output is not valid JSON: %v\nOutput: %s", err, output)
	}
}
