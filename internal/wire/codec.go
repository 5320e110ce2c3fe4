package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// SizeofFreeChatString is the max length, in UTF-16 code units including
// the terminating NUL, of a free-chat payload string (§6).
const SizeofFreeChatString = 128

// EncodeFixedString16 encodes s as a zero-padded, fixed-width UTF-16LE
// array of exactly width code units (width*2 bytes), truncating s if it
// does not fit (the last unit is always left as NUL so the field stays
// NUL-terminated).
func EncodeFixedString16(s string, width int) []byte {
	units := utf16.Encode([]rune(s))
	if len(units) > width-1 {
		units = units[:width-1]
	}
	out := make([]byte, width*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], u)
	}
	return out
}

// DecodeFixedString16 decodes a zero-padded UTF-16LE fixed array back
// into a Go string, stopping at the first NUL code unit (or the end of
// the buffer if there is none).
func DecodeFixedString16(raw []byte) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		u := binary.LittleEndian.Uint16(raw[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// Writer accumulates fixed-size fields into a C-compatible little-endian
// buffer. It never reflects over a struct; every payload type calls these
// primitives explicitly from its own Encode method so the wire layout is
// exactly what the field-by-field calls produce, matching §9's
// "explicit per-field serialization" directive.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer with capacity hint sizeHint.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) U8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) I8(v int8)    { w.U8(uint8(v)) }
func (w *Writer) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) I16(v int16) { w.U16(uint16(v)) }
func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }
func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }
func (w *Writer) F32(v float32) {
	w.U32(math.Float32bits(v))
}
func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }
func (w *Writer) FixedString16(s string, width int) {
	w.Raw(EncodeFixedString16(s, width))
}
func (w *Writer) Pad(n int) { w.buf = append(w.buf, make([]byte, n)...) }

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes fixed-size fields from a decoded payload in the same
// order a matching Writer produced them. Reads past the end of the
// buffer are reported via Err rather than panicking, so a handler can
// check once after decoding an entire struct.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader wraps payload for sequential field reads.
func NewReader(payload []byte) *Reader {
	return &Reader{buf: payload}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.off+n > len(r.buf) {
		r.err = errShortRead
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8   { return r.take(1)[0] }
func (r *Reader) I8() int8    { return int8(r.U8()) }
func (r *Reader) U16() uint16 { return binary.LittleEndian.Uint16(r.take(2)) }
func (r *Reader) I16() int16  { return int16(r.U16()) }
func (r *Reader) U32() uint32 { return binary.LittleEndian.Uint32(r.take(4)) }
func (r *Reader) I32() int32  { return int32(r.U32()) }
func (r *Reader) U64() uint64 { return binary.LittleEndian.Uint64(r.take(8)) }
func (r *Reader) I64() int64  { return int64(r.U64()) }
func (r *Reader) F32() float32 { return math.Float32frombits(r.U32()) }
func (r *Reader) Raw(n int) []byte {
	b := r.take(n)
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
func (r *Reader) FixedString16(width int) string {
	return DecodeFixedString16(r.take(width * 2))
}
func (r *Reader) Skip(n int) { r.take(n) }

// Err reports the first short-read error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Remaining reports how many bytes are left unread.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

var errShortRead = &shortReadError{}

type shortReadError struct{}

func (*shortReadError) Error() string { return "wire: short read decoding fixed packet" }
