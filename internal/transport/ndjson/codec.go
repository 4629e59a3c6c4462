package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Decoder reads one JSON value per line. Blank lines are skipped and a final
// line without a trailing newline is still decoded.
type Decoder struct {
	reader *bufio.Reader
	line   int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

func (d *Decoder) Decode(v any) error {
	for {
		line, err := d.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return err
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		d.line++
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return err
			}
			continue
		}
		if uerr := json.Unmarshal(line, v); uerr != nil {
			return &LineError{Line: d.line, Err: uerr}
		}
		return nil
	}
}

type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

type Encoder struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: w}
}

// Encode writes v as a single line. Safe for concurrent use.
func (e *Encoder) Encode(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = e.writer.Write(payload)
	return err
}
