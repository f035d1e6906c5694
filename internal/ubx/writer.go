package ubx

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Integer is the set of field types the wire format uses.
type Integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32
}

var errShortBuffer = errors.New("write past end of buffer")

// Writer is a cursor over a fixed-size buffer it owns. Fields are appended in
// call order; the first failed write sticks and later writes are dropped.
type Writer struct {
	buf []byte
	off int
	err error
}

func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

// Put writes v least-significant byte first. Signed values are written as
// their two's-complement bit pattern.
func Put[T Integer](w *Writer, v T) {
	n := binary.Size(v)
	if !w.reserve(n) {
		return
	}
	u := uint32(v)
	for i := 0; i < n; i++ {
		w.buf[w.off+i] = byte(u >> (8 * i))
	}
	w.off += n
}

// Zero writes n zero bytes.
func (w *Writer) Zero(n int) {
	if !w.reserve(n) {
		return
	}
	for i := 0; i < n; i++ {
		w.buf[w.off+i] = 0
	}
	w.off += n
}

func (w *Writer) reserve(n int) bool {
	if w.err != nil {
		return false
	}
	if n < 0 || w.off+n > len(w.buf) {
		w.err = fmt.Errorf("%w: offset %d + %d > %d", errShortBuffer, w.off, n, len(w.buf))
		return false
	}
	return true
}

func (w *Writer) Offset() int { return w.off }

// Bytes returns the written prefix of the buffer.
func (w *Writer) Bytes() []byte { return w.buf[:w.off] }

func (w *Writer) Err() error { return w.err }

// reader is the decoding counterpart of Writer.
type reader struct {
	buf []byte
	off int
	err error
}

func get[T Integer](r *reader) T {
	var zero T
	n := binary.Size(zero)
	if r.err != nil {
		return zero
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("read past end of buffer: offset %d + %d > %d", r.off, n, len(r.buf))
		return zero
	}
	var u uint32
	for i := 0; i < n; i++ {
		u |= uint32(r.buf[r.off+i]) << (8 * i)
	}
	r.off += n
	return T(u)
}

func (r *reader) skip(n int) {
	if r.err != nil {
		return
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("read past end of buffer: offset %d + %d > %d", r.off, n, len(r.buf))
		return
	}
	r.off += n
}
