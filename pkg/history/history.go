// Package history writes the per-session action audit trail: a plain
// text file with one timestamped line per event, opened when a lock is
// acquired and closed with a summary footer on unlock. Appends hit the
// file immediately so a crash mid-session loses nothing already
// recorded; only the footer requires a clean close.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrCodeEU/facelock/pkg/logging"
)

const (
	lineTimeFormat    = "2006-01-02 15:04:05.000"
	sessionTimeFormat = "2006-01-02 15:04:05"
	filenameFormat    = "20060102150405"
	rule              = "======================================================================"
)

// Filename returns the session file name for a target identity and
// lock acquisition time: <target>_history_<YYYYMMDDHHMMSS>.txt.
func Filename(target string, start time.Time) string {
	return fmt.Sprintf("%s_history_%s.txt", target, start.Format(filenameFormat))
}

// FormatLine renders one event line: timestamp with millisecond
// precision, the padded event kind, and the description.
func FormatLine(ts time.Time, kind, description string) string {
	return fmt.Sprintf("%s | %-15s | %s", ts.Format(lineTimeFormat), kind, description)
}

// Writer appends events for one lock session. Write failures are
// best-effort: failed lines collect in a pending buffer and are
// flushed ahead of the next successful write, so audit I/O trouble
// never interrupts tracking.
type Writer struct {
	path    string
	target  string
	started time.Time

	file    *os.File
	pending []string
	events  int
}

// Open creates the session file in dir and writes the header. The
// returned Writer is usable even if the file could not be created;
// lines buffer in memory until a later write succeeds.
func Open(dir, target string, start time.Time) *Writer {
	w := &Writer{
		path:    filepath.Join(dir, Filename(target, start)),
		target:  target,
		started: start,
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logging.Component("history").WithError(err).Warnf("could not open session file %s, buffering", w.path)
		w.pending = append(w.pending, w.header())
		return w
	}
	w.file = file

	if _, err := file.WriteString(w.header()); err != nil {
		logging.Component("history").WithError(err).Warn("header write failed, buffering")
		w.pending = append(w.pending, w.header())
	}
	return w
}

// Path returns the session file path.
func (w *Writer) Path() string { return w.path }

// Events returns the number of event lines appended so far.
func (w *Writer) Events() int { return w.events }

func (w *Writer) header() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Face Lock History for: %s\n", w.target)
	fmt.Fprintf(&b, "Session started: %s\n", w.started.Format(sessionTimeFormat))
	b.WriteString(rule + "\n\n")
	return b.String()
}

// Append writes one event line immediately, flushing any pending
// buffered lines first. It never fails the caller.
func (w *Writer) Append(ts time.Time, kind, description string) {
	w.events++
	w.write(FormatLine(ts, kind, description) + "\n")
}

// write flushes pending content plus s; on failure the content joins
// the pending buffer for the next attempt.
func (w *Writer) write(s string) {
	if w.file == nil {
		file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			w.pending = append(w.pending, s)
			return
		}
		w.file = file
	}

	if len(w.pending) > 0 {
		backlog := strings.Join(w.pending, "")
		if _, err := w.file.WriteString(backlog); err != nil {
			w.pending = append(w.pending, s)
			return
		}
		w.pending = w.pending[:0]
	}

	if _, err := w.file.WriteString(s); err != nil {
		logging.Component("history").WithError(err).Warn("event write failed, buffering")
		w.pending = append(w.pending, s)
	}
}

// Close writes the session footer with the duration and total action
// count, then releases the file. end is the unlock time; total is the
// number of actions the session recorded.
func (w *Writer) Close(end time.Time, total int) error {
	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "Session ended: %s\n", end.Format(sessionTimeFormat))
	fmt.Fprintf(&b, "Duration: %.1f seconds\n", end.Sub(w.started).Seconds())
	fmt.Fprintf(&b, "Total actions recorded: %d\n", total)

	w.write(b.String())

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
