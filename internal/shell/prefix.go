// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"io"
	"sync"
)

// PrefixWriter writes complete lines to an underlying writer, each prefixed
// with a label. Several PrefixWriters may share one destination through the
// same mutex so lines from concurrent components never interleave.
type PrefixWriter struct {
	mu     *sync.Mutex
	dst    io.Writer
	prefix []byte
	buf    bytes.Buffer
}

// NewPrefixWriter labels every line written to dst with prefix. mu guards
// dst and should be shared by all writers targeting it.
func NewPrefixWriter(dst io.Writer, mu *sync.Mutex, prefix string) *PrefixWriter {
	return &PrefixWriter{mu: mu, dst: dst, prefix: []byte(prefix)}
}

func (w *PrefixWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// incomplete line stays buffered
			w.buf.Reset()
			w.buf.Write(line)
			break
		}
		if err := w.emit(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes a trailing partial line, if any.
func (w *PrefixWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return nil
	}
	line := append(w.buf.Bytes(), '\n')
	w.buf.Reset()
	return w.emit(line)
}

func (w *PrefixWriter) emit(line []byte) error {
	if _, err := w.dst.Write(w.prefix); err != nil {
		return err
	}
	_, err := w.dst.Write(line)
	return err
}
