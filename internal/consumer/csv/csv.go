// Package csv writes fan-out messages to per-run, per-stream CSV files,
// grounded on the naming convention of spec.md §6 and the original
// match.py's CSVConsumer usage.
package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sig "github.com/nature40/radiotracking-go/pkg/signal"
)

// Writer is a fan-out consumer that appends one CSV row per message to
// the appropriate stream file, using ';' as the delimiter per spec.md §6.
type Writer struct {
	signals *csv.Writer
	matched *csv.Writer
	states  *csv.Writer

	signalsFile *os.File
	matchedFile *os.File
	statesFile  *os.File
}

// New opens (creating dir if needed) the signal, matched, and state CSV
// files for one run, named "<station>_<started>[-matched|-state].csv".
func New(dir, station string, started time.Time, devices []sig.DeviceID) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv: mkdir %s: %w", dir, err)
	}

	ts := started.UTC().Format("2006-01-02T150405")

	signalsFile, err := os.Create(filepath.Join(dir, fmt.Sprintf("%s_%s.csv", station, ts)))
	if err != nil {
		return nil, fmt.Errorf("csv: create signals file: %w", err)
	}
	matchedFile, err := os.Create(filepath.Join(dir, fmt.Sprintf("%s_%s-matched.csv", station, ts)))
	if err != nil {
		signalsFile.Close()
		return nil, fmt.Errorf("csv: create matched file: %w", err)
	}
	statesFile, err := os.Create(filepath.Join(dir, fmt.Sprintf("%s_%s-state.csv", station, ts)))
	if err != nil {
		signalsFile.Close()
		matchedFile.Close()
		return nil, fmt.Errorf("csv: create state file: %w", err)
	}

	w := &Writer{
		signals:     newSemicolonWriter(signalsFile),
		matched:     newSemicolonWriter(matchedFile),
		states:      newSemicolonWriter(statesFile),
		signalsFile: signalsFile,
		matchedFile: matchedFile,
		statesFile:  statesFile,
	}

	if err := w.signals.Write(sig.SignalHeader); err != nil {
		return nil, err
	}
	if err := w.matched.Write(sig.MatchedSignalHeaderFor(devices)); err != nil {
		return nil, err
	}
	if err := w.states.Write(sig.StateMessageHeader); err != nil {
		return nil, err
	}
	w.signals.Flush()
	w.matched.Flush()
	w.states.Flush()

	return w, nil
}

func newSemicolonWriter(f *os.File) *csv.Writer {
	w := csv.NewWriter(f)
	w.Comma = ';'
	return w
}

// Consume implements fanout.Consumer. Per spec.md §7, a write error on
// this consumer is isolated — discarded, never propagated.
func (w *Writer) Consume(m sig.Message) {
	switch v := m.(type) {
	case sig.Signal:
		_ = w.signals.Write(v.CSVRow())
		w.signals.Flush()
	case sig.MatchedSignal:
		_ = w.matched.Write(v.CSVRow())
		w.matched.Flush()
	case sig.StateMessage:
		_ = w.states.Write(v.CSVRow())
		w.states.Flush()
	}
}

// Close flushes and closes all three files.
func (w *Writer) Close() error {
	w.signals.Flush()
	w.matched.Flush()
	w.states.Flush()
	err1 := w.signalsFile.Close()
	err2 := w.matchedFile.Close()
	err3 := w.statesFile.Close()
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return err3
}
