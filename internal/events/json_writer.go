package events

import (
	"encoding/json"
	"io"
	"os"

	"golang.org/x/term"
)

// Record is the JSON envelope used by the JSON and file writers.
type Record struct {
	Type  string `json:"type"`
	Event any    `json:"event"`
}

// JSONWriter prints one JSON record per event.
type JSONWriter struct {
	enc *json.Encoder
}

// NewJSONWriter creates a JSONWriter on out.
func NewJSONWriter(out io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(out)}
}

func (w *JSONWriter) WriteStep(e StepEvent) error {
	return w.enc.Encode(Record{Type: "step", Event: e})
}

func (w *JSONWriter) WriteAbort(e AbortEvent) error {
	return w.enc.Encode(Record{Type: "abort", Event: e})
}

func (w *JSONWriter) WriteFault(e FaultEvent) error {
	return w.enc.Encode(Record{Type: "fault", Event: e})
}

func (w *JSONWriter) WriteDispatch(e DispatchEvent) error {
	return w.enc.Encode(Record{Type: "dispatch", Event: e})
}

// FileWriter appends events to a JSONL file.
type FileWriter struct {
	*JSONWriter
	f *os.File
}

// NewFileWriter opens path for appending, creating it if needed.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileWriter{JSONWriter: NewJSONWriter(f), f: f}, nil
}

// Close closes the underlying file.
func (w *FileWriter) Close() error {
	return w.f.Close()
}

// NewStdoutWriter picks the colorized writer when out is a terminal and
// plain JSON otherwise.
func NewStdoutWriter(out *os.File) Writer {
	if term.IsTerminal(int(out.Fd())) {
		return NewColorWriter(out)
	}
	return NewJSONWriter(out)
}
