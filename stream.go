// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bridge

import (
	"io"

	"code.hybscloud.com/kont"
)

// FlushMode is the write/flush coupling policy of a Writer. Exact
// back-pressure semantics depend on the underlying sink's own buffering
// contract, so the coupling is a tunable, not a fixed law.
type FlushMode uint8

const (
	// FlushEachWrite flushes after every write when the sink supports it,
	// so the fiber blocks until the sink has accepted the bytes.
	FlushEachWrite FlushMode = iota
	// FlushNone never flushes; the sink's own buffering applies.
	FlushNone
)

// flusher is the optional sink surface FlushEachWrite drives.
type flusher interface {
	Flush() error
}

// Reader lifts a pool-side byte source into fiber-side reads. Each Read
// crosses the bridge via RunPool; the raw read runs inside a Blocking
// window so a stalled source never holds the exclusion token.
type Reader struct {
	s *Session
	r io.Reader
}

// NewReader wraps r for fibers of session s.
func NewReader(s *Session, r io.Reader) *Reader {
	return &Reader{s: s, r: r}
}

// Read suspends the calling fiber until the source produces bytes into p.
// End of stream is the distinct Left(io.EOF) sentinel, never a Right(0).
func (sr *Reader) Read(p []byte) kont.Eff[kont.Either[error, int]] {
	s := sr.s
	return RunPool(func() (int, error) {
		var n int
		var err error
		s.Blocking(func() { n, err = sr.r.Read(p) })
		if n > 0 {
			// Bytes first; a trailing error surfaces on the next read.
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		return 0, nil
	})
}

// Writer lifts a pool-side byte sink into fiber-side writes. Each Write
// crosses the bridge via RunPool and, under FlushEachWrite, waits for the
// sink's flush acknowledgement so its back-pressure reaches the fiber.
type Writer struct {
	s    *Session
	w    io.Writer
	mode FlushMode
}

// NewWriter wraps w for fibers of session s.
func NewWriter(s *Session, w io.Writer, mode FlushMode) *Writer {
	return &Writer{s: s, w: w, mode: mode}
}

// Write suspends the calling fiber until the sink has accepted p. Whether
// acceptance implies a durable flush is up to the FlushMode.
func (sw *Writer) Write(p []byte) kont.Eff[kont.Either[error, int]] {
	s := sw.s
	return RunPool(func() (int, error) {
		var n int
		var err error
		s.Blocking(func() {
			n, err = sw.w.Write(p)
			if err == nil && sw.mode == FlushEachWrite {
				if fl, ok := sw.w.(flusher); ok {
					err = fl.Flush()
				}
			}
		})
		return n, err
	})
}
