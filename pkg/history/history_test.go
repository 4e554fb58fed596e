package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFilename(t *testing.T) {
	start := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	got := Filename("Alice", start)
	want := "Alice_history_20250601143005.txt"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 30, 5, 123_000_000, time.UTC)
	got := FormatLine(ts, "BLINK", "Eye blink detected (EAR=0.150)")
	want := "2025-06-01 14:30:05.123 | BLINK           | Eye blink detected (EAR=0.150)"
	if got != want {
		t.Errorf("FormatLine = %q, want %q", got, want)
	}
}

func TestWriter_Session(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)

	w := Open(dir, "Alice", start)
	w.Append(start, "LOCK", "Face locked onto Alice")
	w.Append(start.Add(2*time.Second), "BLINK", "Eye blink detected (EAR=0.150)")

	// Appends are unbuffered: the lines must be on disk before Close.
	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("failed to read session file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "Face Lock History for: Alice") {
		t.Error("header missing target name")
	}
	if !strings.Contains(content, "Session started: 2025-06-01 14:30:00") {
		t.Error("header missing session start")
	}
	if !strings.Contains(content, "| BLINK           | Eye blink detected (EAR=0.150)") {
		t.Errorf("event line missing, got:\n%s", content)
	}
	if strings.Contains(content, "Session ended") {
		t.Error("footer must not appear before Close")
	}

	if w.Events() != 2 {
		t.Errorf("expected 2 events, got %d", w.Events())
	}

	if err := w.Close(start.Add(12300*time.Millisecond), 3); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err = os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("failed to re-read session file: %v", err)
	}
	content = string(data)
	if !strings.Contains(content, "Session ended: 2025-06-01 14:30:12") {
		t.Errorf("footer missing session end, got:\n%s", content)
	}
	if !strings.Contains(content, "Duration: 12.3 seconds") {
		t.Errorf("footer missing duration, got:\n%s", content)
	}
	if !strings.Contains(content, "Total actions recorded: 3") {
		t.Errorf("footer missing action count, got:\n%s", content)
	}
}

func TestWriter_BestEffortBuffering(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist-yet")
	start := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)

	// The session directory does not exist: opens fail, lines buffer.
	w := Open(missing, "Bob", start)
	w.Append(start, "LOCK", "Face locked onto Bob")
	w.Append(start.Add(time.Second), "SMILE", "Smile detected (MAR=0.400)")

	if _, err := os.Stat(w.Path()); !os.IsNotExist(err) {
		t.Fatal("no file should exist while writes fail")
	}

	// Once the directory appears, the next write flushes the backlog.
	if err := os.MkdirAll(missing, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	w.Append(start.Add(2*time.Second), "BLINK", "Eye blink detected (EAR=0.180)")

	data, err := os.ReadFile(w.Path())
	if err != nil {
		t.Fatalf("expected flushed session file: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"Face Lock History for: Bob",
		"Face locked onto Bob",
		"Smile detected (MAR=0.400)",
		"Eye blink detected (EAR=0.180)",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("flushed file missing %q, got:\n%s", want, content)
		}
	}

	if err := w.Close(start.Add(3*time.Second), 4); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestWriter_CloseWithoutFile(t *testing.T) {
	start := time.Now()
	w := Open("/nonexistent/dir", "Carol", start)
	w.Append(start, "LOCK", "Face locked onto Carol")

	// Everything stayed in memory; Close must still succeed.
	if err := w.Close(start.Add(time.Second), 2); err != nil {
		t.Errorf("Close on buffered-only writer failed: %v", err)
	}
}
