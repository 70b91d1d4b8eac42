package packet

import (
	"encoding/binary"
	"math"
)

// Reader reads fields from a verified payload. It never copies the payload;
// ReadBytes and ReadStringView return sub-slices of the original buffer.
// Out-of-range reads return zero values, though after Verify they cannot occur.
type Reader struct {
	data []byte
	off  int
}

func NewReader(payload []byte) *Reader {
	return &Reader{data: payload}
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if r.off >= len(r.data) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if r.off+2 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian uint32.
func (r *Reader) ReadD() uint32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadQ reads 8 bytes as little-endian uint64.
func (r *Reader) ReadQ() uint64 {
	if r.off+8 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

// ReadF reads an IEEE-754 float32.
func (r *Reader) ReadF() float32 {
	return math.Float32frombits(r.ReadD())
}

// ReadStringView reads a length-prefixed string without copying.
func (r *Reader) ReadStringView() []byte {
	n := int(r.ReadH())
	return r.ReadBytes(n)
}

// ReadS reads a length-prefixed string.
func (r *Reader) ReadS() string {
	return string(r.ReadStringView())
}

// ReadBytes returns the next n bytes as a view into the payload.
func (r *Reader) ReadBytes(n int) []byte {
	if r.off+n > len(r.data) {
		remaining := r.data[r.off:]
		r.off = len(r.data)
		return remaining
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
