// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

// maxLineSize bounds one protocol line. Process names are short; anything
// longer than this is not a protocol stream.
const maxLineSize = 1 << 20

// Records yields each decoded record of the stream in order.
//
// Iteration stops after the terminal record, after the first error, or at
// end of input. If input ends before a terminal record, a final
// ErrMissingTerminal is yielded.
func Records(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			rec, err := Decode(line)
			if err != nil {
				if pe, ok := err.(*ProtocolError); ok {
					pe.LineNo = lineNo
				}
				yield(nil, err)
				return
			}
			if !yield(rec, nil) || rec.Terminal() {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
			return
		}
		yield(nil, ErrMissingTerminal)
	}
}

// Writer emits protocol records, one per line.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer that emits records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes rec and writes it followed by a newline.
func (pw *Writer) Write(rec Record) error {
	line, err := Encode(rec)
	if err != nil {
		return err
	}
	_, err = io.WriteString(pw.w, line+"\n")
	return err
}
