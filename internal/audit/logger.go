package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

const (
	DirectionOutbound = "out"
	DirectionInbound  = "in"
)

// Entry is one line of the transcript. Frames that are not valid JSON are
// kept verbatim in Raw.
type Entry struct {
	Timestamp string          `json:"timestamp"`
	Direction string          `json:"direction"`
	Frame     json.RawMessage `json:"frame,omitempty"`
	Raw       string          `json:"raw,omitempty"`
}

// Logger appends every frame a client sends or receives as a JSON line. A nil
// or disabled Logger drops everything.
type Logger struct {
	enabled bool
	path    string
	w       io.Writer
	mu      sync.Mutex
}

func New(enabled bool, path string) *Logger {
	return &Logger{enabled: enabled, path: path}
}

func NewWriter(w io.Writer) *Logger {
	return &Logger{enabled: w != nil, w: w}
}

func (l *Logger) Outbound(frame []byte) {
	l.write(DirectionOutbound, frame)
}

func (l *Logger) Inbound(frame []byte) {
	l.write(DirectionInbound, frame)
}

func (l *Logger) write(direction string, frame []byte) {
	if l == nil || !l.enabled || (l.path == "" && l.w == nil) {
		return
	}
	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Direction: direction,
	}
	if json.Valid(frame) {
		entry.Frame = append(json.RawMessage(nil), frame...)
	} else {
		entry.Raw = string(frame)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	raw = append(raw, '\n')
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w != nil {
		_, _ = l.w.Write(raw)
		return
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(raw)
}
