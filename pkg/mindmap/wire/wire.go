// Package wire implements the line-oriented record framing used by the
// streaming generation endpoint. Each record is "<prefix>:<payload>\n".
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prefix identifies a record kind.
type Prefix string

const (
	PrefixText      Prefix = "0"
	PrefixError     Prefix = "3"
	PrefixReasoning Prefix = "g"
	PrefixFinish    Prefix = "d"
)

// ContentType and StreamHeader are set on streaming responses.
const (
	ContentType  = "text/plain; charset=utf-8"
	StreamHeader = "X-Vercel-AI-Data-Stream"
)

const maxRecordSize = 1024 * 1024

// Record is one decoded line. Text holds the decoded payload for text,
// reasoning and error records; Raw is the undecoded payload.
type Record struct {
	Prefix Prefix
	Text   string
	Raw    string
}

type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishError     FinishReason = "error"
	FinishCancelled FinishReason = "cancelled"
)

type finishPayload struct {
	FinishReason FinishReason `json:"finishReason"`
}

type flusher interface {
	Flush() error
}

// Encoder writes records. It flushes after every record when the underlying
// writer has a Flush() error method (bufio.Writer, fasthttp stream writers).
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) WriteText(text string) error {
	return e.writeJSON(PrefixText, text)
}

func (e *Encoder) WriteReasoning(text string) error {
	return e.writeJSON(PrefixReasoning, text)
}

func (e *Encoder) WriteError(msg string) error {
	return e.writeJSON(PrefixError, msg)
}

func (e *Encoder) WriteFinish(reason FinishReason) error {
	return e.writeJSON(PrefixFinish, finishPayload{FinishReason: reason})
}

func (e *Encoder) writeJSON(prefix Prefix, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", prefix, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := io.WriteString(e.w, string(prefix)+":"+string(b)+"\n"); err != nil {
		return err
	}
	if f, ok := e.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Decoder reads records, skipping blank lines and unknown prefixes.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	return &Decoder{scanner: s}
}

// Next returns the next known record, or io.EOF once the stream ends.
func (d *Decoder) Next() (Record, error) {
	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		rec, ok := parseLine(line)
		if !ok {
			continue
		}
		return rec, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

func parseLine(line string) (Record, bool) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return Record{}, false
	}
	prefix := Prefix(line[:idx])
	raw := line[idx+1:]

	switch prefix {
	case PrefixText, PrefixReasoning, PrefixError:
		return Record{Prefix: prefix, Text: decodeString(raw), Raw: raw}, true
	case PrefixFinish:
		var fp finishPayload
		if err := json.Unmarshal([]byte(raw), &fp); err == nil {
			return Record{Prefix: prefix, Text: string(fp.FinishReason), Raw: raw}, true
		}
		return Record{Prefix: prefix, Raw: raw}, true
	default:
		return Record{}, false
	}
}

// decodeString prefers a JSON string payload and falls back to the raw text.
func decodeString(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}
