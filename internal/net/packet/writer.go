package packet

import (
	"encoding/binary"
	"math"
)

// Writer builds one envelope. All multi-byte writes are little-endian; the
// payload length in the header is filled in by Bytes.
type Writer struct {
	buf []byte
}

func NewWriter(t MsgType) *Writer {
	w := &Writer{buf: make([]byte, HeaderSize, 64)}
	w.buf[0] = byte(t)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteD writes 4 bytes little-endian.
func (w *Writer) WriteD(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteQ writes 8 bytes little-endian.
func (w *Writer) WriteQ(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteF writes an IEEE-754 float32.
func (w *Writer) WriteF(v float32) {
	w.WriteD(math.Float32bits(v))
}

// WriteS writes a u16 length prefix followed by the string bytes. Strings
// longer than the prefix can describe are truncated.
func (w *Writer) WriteS(s string) {
	if len(s) > MaxPayload {
		s = s[:MaxPayload]
	}
	w.WriteH(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes finalizes the header and returns the envelope.
func (w *Writer) Bytes() []byte {
	binary.LittleEndian.PutUint16(w.buf[1:3], uint16(len(w.buf)-HeaderSize))
	return w.buf
}

// Len returns the current payload length.
func (w *Writer) Len() int {
	return len(w.buf) - HeaderSize
}
