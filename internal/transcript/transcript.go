// Package transcript keeps the ordered log lines of a single run so they can be
// replayed into a notification body once the run is over.
package transcript

import (
	"io"
	"strings"
	"sync"
	"time"
)

// Line separator used when rendering a report. Two trailing spaces keep the
// markdown renderers of the push services from merging lines.
const SEPARATOR = "  \n"

// Event - one recorded log line
type Event struct {
	Seq     int
	Time    time.Time
	Level   string
	Message string
}

// Recorder is an append-only event buffer owned by one run.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	seq    int
	now    func() time.Time
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{now: time.Now}
}

// Record appends a message. Trailing newlines are dropped.
func (r *Recorder) Record(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.events = append(r.events, Event{
		Seq:     r.seq,
		Time:    r.now(),
		Level:   level,
		Message: strings.TrimRight(msg, "\n"),
	})
}

// Writer returns an io.Writer that records every write as one event at level.
// Suitable as the output of a log.Logger with no flags.
func (r *Recorder) Writer(level string) io.Writer {
	return &levelWriter{r: r, level: level}
}

// Len returns the number of buffered events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Replay returns a copy of the buffered events in order.
func (r *Recorder) Replay() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Erase clears the buffer.
func (r *Recorder) Erase() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Drain replays then erases under one lock.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.events
	r.events = nil
	return out
}

// Render joins event messages into a single report.
func Render(events []Event) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.Message)
	}
	return strings.Join(lines, SEPARATOR)
}

type levelWriter struct {
	r     *Recorder
	level string
}

func (w *levelWriter) Write(p []byte) (int, error) {
	w.r.Record(w.level, string(p))
	return len(p), nil
}
