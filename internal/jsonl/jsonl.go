// Package jsonl reads and writes newline-delimited telemetry records.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"market-flight/internal/telemetry"
)

const maxLineBytes = 1 << 20

var (
	// ErrLineTooLong marks a line over the 1 MiB limit.
	ErrLineTooLong = errors.New("line exceeds 1 MiB")
	// ErrMissingRegime marks a record without a regime, such as null or {}.
	ErrMissingRegime = errors.New("record has no regime")
)

// LineError describes a line that was skipped while decoding.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result is the outcome of a best-effort decode.
type Result struct {
	Frames  []telemetry.Frame
	Skipped []LineError
}

// Write emits one JSON object per line.
func Write[T any](w io.Writer, records []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// Encode writes frames as JSONL. Frames without flags are written with an empty list.
func Encode(w io.Writer, frames []telemetry.Frame) error {
	out := make([]telemetry.Frame, len(frames))
	for i, f := range frames {
		if f.Flags == nil {
			f.Flags = []telemetry.Flag{}
		}
		out[i] = f
	}
	return Write(w, out)
}

// Decode parses every non-blank line independently. Lines that fail to parse,
// lack a regime, or exceed the line limit are logged, collected in
// Result.Skipped and otherwise ignored; only read failures are returned as errors.
func Decode(r io.Reader, logger zerolog.Logger) (Result, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	res := Result{Frames: make([]telemetry.Frame, 0)}
	lineNo := 0
	for {
		raw, tooLong, readErr := readLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return res, fmt.Errorf("read telemetry stream: %w", readErr)
		}
		if len(raw) > 0 || tooLong {
			lineNo++
			if tooLong {
				res.skip(logger, lineNo, ErrLineTooLong)
			} else if line := bytes.TrimSpace(raw); len(line) > 0 {
				frame, err := decodeFrame(line)
				if err != nil {
					res.skip(logger, lineNo, err)
				} else {
					res.Frames = append(res.Frames, frame)
				}
			}
		}
		if readErr != nil {
			return res, nil
		}
	}
}

func (res *Result) skip(logger zerolog.Logger, lineNo int, err error) {
	logger.Warn().Err(err).Int("line", lineNo).Msg("skipping invalid telemetry line")
	res.Skipped = append(res.Skipped, LineError{Line: lineNo, Err: err})
}

// readLine returns the next line including its newline. A line longer than
// maxLineBytes is drained and reported with tooLong set and no content.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, readErr := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineBytes {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, readErr
	}
}

// frameKeys detects records without a regime, including a bare null or {}.
type frameKeys struct {
	Regime json.RawMessage `json:"regime"`
}

func decodeFrame(line []byte) (telemetry.Frame, error) {
	var keys frameKeys
	if err := json.Unmarshal(line, &keys); err != nil {
		return telemetry.Frame{}, err
	}
	if len(keys.Regime) == 0 || string(keys.Regime) == "null" {
		return telemetry.Frame{}, ErrMissingRegime
	}

	var frame telemetry.Frame
	if err := json.Unmarshal(line, &frame); err != nil {
		return telemetry.Frame{}, err
	}
	return frame, nil
}
