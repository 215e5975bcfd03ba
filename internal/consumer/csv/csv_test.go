package csv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

func TestWriterCreatesThreeFilesWithHeaders(t *testing.T) {
	dir := t.TempDir()
	devices := []sig.DeviceID{sig.IndexDeviceID(0), sig.IndexDeviceID(1)}
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	w, err := New(dir, "teststation", started, devices)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 CSV files, got %d", len(entries))
	}

	signalsPath := filepath.Join(dir, "teststation_2026-01-01T100000.csv")
	data, err := os.ReadFile(signalsPath)
	if err != nil {
		t.Fatalf("expected signals file %s to exist: %v", signalsPath, err)
	}
	if !strings.Contains(string(data), "device;ts;frequency") {
		t.Fatalf("expected semicolon-delimited header in signals file, got %q", string(data))
	}
}

func TestWriterConsumeAppendsRows(t *testing.T) {
	dir := t.TempDir()
	devices := []sig.DeviceID{sig.IndexDeviceID(0)}
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	w, err := New(dir, "teststation", started, devices)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w.Consume(sig.Signal{Device: devices[0], TS: started, Frequency: 150000000})
	w.Consume(sig.StateMessage{Device: devices[0], TS: started, State: sig.StateRunning})

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	signalsData, err := os.ReadFile(filepath.Join(dir, "teststation_2026-01-01T100000.csv"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(signalsData)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 data row, got %d lines", len(lines))
	}

	statesData, err := os.ReadFile(filepath.Join(dir, "teststation_2026-01-01T100000-state.csv"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(statesData), "RUNNING") {
		t.Fatalf("expected RUNNING in state file, got %q", string(statesData))
	}
}
