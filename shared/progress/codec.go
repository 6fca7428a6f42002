package progress

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	dataPrefix = "data: "

	// maxRecordBytes allows for completion records that embed rendered
	// thumbnails as data URLs.
	maxRecordBytes = 64 << 20
)

// Encode writes one event as a "data: <json>\n\n" record.
func Encode(w io.Writer, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode progress event: %w", err)
	}
	buf := make([]byte, 0, len(dataPrefix)+len(payload)+2)
	buf = append(buf, dataPrefix...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	_, err = w.Write(buf)
	return err
}

// RawEvent is a decoded record whose payload is left for the caller to
// unmarshal into the type it expects for the step.
type RawEvent struct {
	Step     Step            `json:"step"`
	Message  string          `json:"message"`
	Progress int             `json:"progress,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Decoder reads records from a stream of arbitrarily sized chunks.
// Records may be split across reads or share a read with other records.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	return &Decoder{scanner: scanner}
}

// Next returns the next record, or io.EOF once the stream ends. Blank
// lines, comments and non-data fields are skipped.
func (d *Decoder) Next() (RawEvent, error) {
	for d.scanner.Scan() {
		line := bytes.TrimRight(d.scanner.Bytes(), "\r")
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		payload := bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" "))

		var e RawEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return RawEvent{}, fmt.Errorf("malformed progress record: %w", err)
		}
		return e, nil
	}
	if err := d.scanner.Err(); err != nil {
		return RawEvent{}, err
	}
	return RawEvent{}, io.EOF
}

// StreamError is the failure reported by a terminal error event.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// ErrNoTerminalEvent is returned when a stream ends without complete or error.
var ErrNoTerminalEvent = errors.New("progress stream ended without a terminal event")

// Consume hands every record to fn and stops at the first terminal event.
// A terminal error event is returned as *StreamError.
func Consume(r io.Reader, fn func(RawEvent)) error {
	dec := NewDecoder(r)
	for {
		e, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return ErrNoTerminalEvent
		}
		if err != nil {
			return err
		}
		if fn != nil {
			fn(e)
		}
		switch e.Step {
		case StepComplete:
			return nil
		case StepError:
			return &StreamError{Message: e.Message}
		}
	}
}
