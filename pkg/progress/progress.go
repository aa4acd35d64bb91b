// Package progress implements the line protocol child annotators use to
// report per-image progress to a parent process.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/menta2k/image-labeler/pkg/types"
)

// Prefix marks a progress line. Everything else on the stream is log text.
const Prefix = "PROGRESS:"

// Status values carried by events
const (
	StatusTagging    = "tagging"
	StatusCaptioning = "captioning"
	StatusMerging    = "merging"
)

type flusher interface {
	Flush() error
}

// Writer serializes progress events onto an output stream, one line per
// event, flushing after each so a reader sees events as they happen.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter binds a Writer to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write emits a single event line
func (pw *Writer) Write(ev types.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	line := make([]byte, 0, len(Prefix)+len(payload)+1)
	line = append(line, Prefix...)
	line = append(line, payload...)
	line = append(line, '\n')

	pw.mu.Lock()
	defer pw.mu.Unlock()
	if _, err := pw.w.Write(line); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	// *os.File is unbuffered; buffered writers are flushed per event
	if f, ok := pw.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Emitter numbers events for one batch. Total is fixed at construction.
type Emitter struct {
	w      *Writer
	total  int
	status string
	next   int
}

// NewEmitter returns an emitter for a batch of total images
func NewEmitter(w *Writer, total int, status string) *Emitter {
	return &Emitter{w: w, total: total, status: status}
}

// Next reports that work on file is starting and returns the event sent
func (e *Emitter) Next(file string) (types.ProgressEvent, error) {
	if e.next >= e.total {
		return types.ProgressEvent{}, fmt.Errorf("progress overflow: %d of %d already reported", e.next, e.total)
	}
	e.next++
	ev := types.ProgressEvent{
		Progress:    e.next,
		Total:       e.total,
		CurrentFile: file,
		Status:      e.status,
	}
	if e.w == nil {
		return ev, nil
	}
	return ev, e.w.Write(ev)
}

// Parse decodes a progress line. ok is false for log lines and for lines that
// carry the prefix but no valid event.
func Parse(line string) (types.ProgressEvent, bool) {
	line = strings.TrimRight(line, "\r\n")
	payload, found := strings.CutPrefix(line, Prefix)
	if !found {
		return types.ProgressEvent{}, false
	}
	var ev types.ProgressEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return types.ProgressEvent{}, false
	}
	return ev, true
}

// Relabel prefixes the event's file name with a pass label
func Relabel(ev types.ProgressEvent, label string) types.ProgressEvent {
	if label != "" {
		ev.CurrentFile = "[" + label + "] " + ev.CurrentFile
	}
	return ev
}

// PassLabel formats the label used for pass k of n
func PassLabel(k, n int, name string) string {
	return fmt.Sprintf("Pass %d/%d %s", k, n, name)
}
