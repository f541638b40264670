// Package inject inserts bytes into a stream right after the first
// occurrence of a marker, without buffering the stream.
//
// The live-reload client script is added to served HTML this way: the file
// is copied through a Writer whose marker is an anchor tag such as <head>.
// Only a partial match of the marker is ever held back, so memory use is
// bounded by the marker length regardless of file size.
package inject

import (
	"bytes"
	"errors"
	"io"
)

// ErrClosed is returned by Write after Close. The stream is unusable from
// then on.
var ErrClosed = errors.New("inject: write after close")

// Writer copies everything written to it into the wrapped writer, adding
// the injection once, immediately after the first occurrence of the marker.
type Writer struct {
	w         io.Writer
	after     []byte
	injection []byte
	fail      []int

	// matched is the length of the marker prefix currently held back.
	matched int
	done    bool
	closed  bool
	buf     []byte
}

// NewWriter returns a Writer that injects injection after the first
// occurrence of after. An empty marker injects at the start of the stream.
func NewWriter(w io.Writer, after, injection []byte) *Writer {
	return &Writer{
		w:         w,
		after:     append([]byte(nil), after...),
		injection: append([]byte(nil), injection...),
		fail:      failureTable(after),
	}
}

// Injected reports whether the marker has been found and the injection
// emitted.
func (iw *Writer) Injected() bool {
	return iw.done
}

// Write transforms one chunk. The returned count is always len(p) on
// success, since held-back bytes are accounted for on a later Write or Close.
func (iw *Writer) Write(p []byte) (int, error) {
	if iw.closed {
		return 0, ErrClosed
	}
	if iw.done {
		return iw.w.Write(p)
	}
	if len(iw.after) == 0 {
		iw.done = true
		if _, err := iw.w.Write(iw.injection); err != nil {
			return 0, err
		}
		return iw.w.Write(p)
	}

	out := iw.buf[:0]
	i := 0
	for i < len(p) {
		if iw.matched == 0 {
			// Skip straight to the next candidate start byte.
			j := bytes.IndexByte(p[i:], iw.after[0])
			if j < 0 {
				out = append(out, p[i:]...)
				break
			}
			out = append(out, p[i:i+j]...)
			i += j
		}

		b := p[i]
		for iw.matched > 0 && iw.after[iw.matched] != b {
			// The held prefix cannot complete; release the part that no
			// longer overlaps a shorter candidate.
			next := iw.fail[iw.matched-1]
			out = append(out, iw.after[:iw.matched-next]...)
			iw.matched = next
		}
		if iw.after[iw.matched] == b {
			iw.matched++
		} else {
			out = append(out, b)
		}
		i++

		if iw.matched == len(iw.after) {
			out = append(out, iw.after...)
			out = append(out, iw.injection...)
			out = append(out, p[i:]...)
			iw.matched = 0
			iw.done = true
			break
		}
	}

	iw.buf = out[:0]
	if len(out) > 0 {
		if _, err := iw.w.Write(out); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close flushes any held-back partial match. It does not close the wrapped
// writer.
func (iw *Writer) Close() error {
	if iw.closed {
		return nil
	}
	iw.closed = true
	if iw.done {
		return nil
	}
	if len(iw.after) == 0 {
		iw.done = true
		_, err := iw.w.Write(iw.injection)
		return err
	}
	if iw.matched > 0 {
		held := iw.after[:iw.matched]
		iw.matched = 0
		_, err := iw.w.Write(held)
		return err
	}
	return nil
}

// Bytes runs src through a Writer in one go.
func Bytes(src, after, injection []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(src) + len(injection))
	w := NewWriter(&out, after, injection)
	_, _ = w.Write(src)
	_ = w.Close()
	return out.Bytes()
}

// failureTable is the Knuth-Morris-Pratt prefix function: fail[i] is the
// length of the longest proper prefix of pattern[:i+1] that is also its
// suffix.
func failureTable(pattern []byte) []int {
	fail := make([]int, len(pattern))
	k := 0
	for i := 1; i < len(pattern); i++ {
		for k > 0 && pattern[i] != pattern[k] {
			k = fail[k-1]
		}
		if pattern[i] == pattern[k] {
			k++
		}
		fail[i] = k
	}
	return fail
}
