package ubx

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriter_LittleEndianAndSigned(t *testing.T) {
	w := NewWriter(11)
	Put(w, uint8(0xAB))
	Put(w, uint16(0x1234))
	Put(w, int32(-2))
	Put(w, int16(-12345))
	Put(w, int8(-1))
	Put(w, FixType(3))
	if err := w.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	want := []byte{0xAB, 0x34, 0x12, 0xFE, 0xFF, 0xFF, 0xFF, 0xC7, 0xCF, 0xFF, 0x03}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("got % X want % X", w.Bytes(), want)
	}
}

func TestWriter_OverflowSticks(t *testing.T) {
	w := NewWriter(3)
	Put(w, uint16(1))
	Put(w, uint32(2))
	Put(w, uint8(3))
	if !errors.Is(w.Err(), errShortBuffer) {
		t.Fatalf("err=%v", w.Err())
	}
	if w.Offset() != 2 {
		t.Fatalf("offset=%d want 2", w.Offset())
	}
}

func TestReader_MatchesWriter(t *testing.T) {
	w := NewWriter(9)
	Put(w, int32(-338688000))
	w.Zero(2)
	Put(w, uint16(2024))
	Put(w, int8(-5))
	r := &reader{buf: w.Bytes()}
	if v := get[int32](r); v != -338688000 {
		t.Fatalf("int32=%d", v)
	}
	r.skip(2)
	if v := get[uint16](r); v != 2024 {
		t.Fatalf("uint16=%d", v)
	}
	if v := get[int8](r); v != -5 {
		t.Fatalf("int8=%d", v)
	}
	_ = get[uint8](r)
	if r.err == nil {
		t.Fatalf("expected read past end")
	}
}
