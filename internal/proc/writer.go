// SPDX-License-Identifier: MPL-2.0

package proc

import (
	"io"
	"os"
	"sync"
)

// lockedWriter serializes writes to w.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLockedWriter returns w guarded by a mutex, for sinks shared between a
// Stream stderr pump and a logger. Files are returned unchanged: the
// operating system already orders their writes and callers may need the
// *os.File to detect a terminal.
func NewLockedWriter(w io.Writer) io.Writer {
	switch w.(type) {
	case *os.File, *lockedWriter:
		return w
	}
	return &lockedWriter{w: w}
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
