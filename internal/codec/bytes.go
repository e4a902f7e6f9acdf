package codec

import (
	"encoding/binary"
	"fmt"
)

// ErrShortBuffer is returned by any decode step that would read past the end
// of the input. It is returned unwrapped, so callers can compare against it
// directly; it does not say which field was truncated.
var ErrShortBuffer = fmt.Errorf("codec: short buffer")

// reader walks a byte slice field by field without ever allocating more than
// the lengths it is told to read. All decoders in this package are built on
// top of it so that a truncated frame fails with ErrShortBuffer instead of a
// panic, and so that key/value slices handed back to callers are owned
// copies rather than views into the original datagram buffer.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrShortBuffer
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// bytesN reads n raw bytes and returns an owned copy, never a slice aliasing
// the input buffer.
func (r *reader) bytesN(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+n])
	r.off += n
	return out, nil
}

// lenPrefixed reads a u16 length prefix followed by that many bytes, the
// `len|bytes` shape used for every key and value field in §4.1.
func (r *reader) lenPrefixed() ([]byte, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	return r.bytesN(int(n))
}

// writer accumulates an encoded frame. It never fails: callers are expected
// to validate the message shape before encoding (see Encode failure in
// spec §7 — an unsupported variant is a programmer error, not a runtime one).
type writer struct {
	buf []byte
}

func newWriter(capHint int) *writer {
	return &writer{buf: make([]byte, 0, capHint)}
}

func (w *writer) putU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) putU16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) putU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) putBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) putLenPrefixed(b []byte) {
	w.putU16(uint16(len(b)))
	w.putBytes(b)
}

func (w *writer) bytes() []byte {
	return w.buf
}
