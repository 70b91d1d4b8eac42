package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// HeaderSize is the envelope header: 1 byte tag + 2 bytes LE payload length.
const HeaderSize = 3

// MaxPayload is the largest payload the 16-bit length field can declare.
const MaxPayload = 0xFFFF

var ErrVerificationFailed = errors.New("packet verification failed")

// FieldKind is the wire shape of one payload field.
type FieldKind uint8

const (
	FieldU8 FieldKind = iota
	FieldU16
	FieldU32
	FieldU64
	FieldF32
	FieldString // u16 LE length prefix + UTF-8 bytes
)

var fixedSizes = [...]int{
	FieldU8:  1,
	FieldU16: 2,
	FieldU32: 4,
	FieldU64: 8,
	FieldF32: 4,
}

type Field struct {
	Name   string
	Kind   FieldKind
	MaxLen int // strings only
}

// Schema is the exact payload layout of one message type. Trailing bytes are
// rejected.
type Schema []Field

var schemas = map[MsgType]Schema{
	MsgUserConnect: {
		{Name: "name", Kind: FieldString, MaxLen: 64},
		{Name: "password", Kind: FieldString, MaxLen: 64},
	},
	MsgUserDisconnect: {},
	MsgMove: {
		{Name: "directions", Kind: FieldU8},
		{Name: "pitch", Kind: FieldF32},
		{Name: "yaw", Kind: FieldF32},
	},
	MsgAttack: {
		{Name: "target", Kind: FieldU64},
	},
	MsgPing: {
		{Name: "seq", Kind: FieldU32},
	},
	MsgSeed: {
		{Name: "seed", Kind: FieldU64},
	},
	MsgUserSpawn: {
		{Name: "id", Kind: FieldU64},
		{Name: "name", Kind: FieldString, MaxLen: 64},
		{Name: "x", Kind: FieldF32},
		{Name: "y", Kind: FieldF32},
		{Name: "z", Kind: FieldF32},
	},
	MsgEntitySpawn: {
		{Name: "id", Kind: FieldU64},
		{Name: "kind", Kind: FieldU8},
		{Name: "x", Kind: FieldF32},
		{Name: "y", Kind: FieldF32},
		{Name: "z", Kind: FieldF32},
		{Name: "orientation", Kind: FieldF32},
	},
	MsgEntityRemove: {
		{Name: "id", Kind: FieldU64},
	},
	MsgEntityUpdate: {
		{Name: "id", Kind: FieldU64},
		{Name: "x", Kind: FieldF32},
		{Name: "y", Kind: FieldF32},
		{Name: "z", Kind: FieldF32},
		{Name: "orientation", Kind: FieldF32},
	},
	MsgAuthFailed: {},
	MsgPong: {
		{Name: "seq", Kind: FieldU32},
	},
}

// SchemaFor returns the payload schema of t.
func SchemaFor(t MsgType) (Schema, bool) {
	s, ok := schemas[t]
	return s, ok
}

// Envelope is a verified message. Payload aliases the raw buffer.
type Envelope struct {
	Type    MsgType
	Payload []byte
}

// Verify checks raw against the envelope layout and the payload schema of its
// tag before anything is interpreted. Only structural facts (lengths, string
// prefixes, UTF-8 validity, finite floats) are inspected.
func Verify(raw []byte) (Envelope, error) {
	if len(raw) < HeaderSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrVerificationFailed, len(raw))
	}
	declared := int(binary.LittleEndian.Uint16(raw[1:3]))
	if declared != len(raw)-HeaderSize {
		return Envelope{}, fmt.Errorf("%w: declared payload %d, actual %d", ErrVerificationFailed, declared, len(raw)-HeaderSize)
	}
	t := MsgType(raw[0])
	schema, ok := schemas[t]
	if !ok {
		return Envelope{}, fmt.Errorf("%w: no schema for tag %d", ErrVerificationFailed, raw[0])
	}
	payload := raw[HeaderSize:]
	if err := schema.verify(payload); err != nil {
		return Envelope{}, fmt.Errorf("%w: %s: %v", ErrVerificationFailed, t, err)
	}
	return Envelope{Type: t, Payload: payload}, nil
}

func (s Schema) verify(payload []byte) error {
	off := 0
	for _, f := range s {
		if f.Kind == FieldString {
			if off+2 > len(payload) {
				return fmt.Errorf("field %s: truncated length prefix", f.Name)
			}
			n := int(binary.LittleEndian.Uint16(payload[off:]))
			off += 2
			if f.MaxLen > 0 && n > f.MaxLen {
				return fmt.Errorf("field %s: length %d exceeds %d", f.Name, n, f.MaxLen)
			}
			if off+n > len(payload) {
				return fmt.Errorf("field %s: truncated string", f.Name)
			}
			if !utf8.Valid(payload[off : off+n]) {
				return fmt.Errorf("field %s: invalid utf-8", f.Name)
			}
			off += n
			continue
		}
		if int(f.Kind) >= len(fixedSizes) {
			return fmt.Errorf("field %s: unknown kind %d", f.Name, f.Kind)
		}
		size := fixedSizes[f.Kind]
		if off+size > len(payload) {
			return fmt.Errorf("field %s: truncated", f.Name)
		}
		if f.Kind == FieldF32 {
			v := math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return fmt.Errorf("field %s: not a finite number", f.Name)
			}
		}
		off += size
	}
	if off != len(payload) {
		return fmt.Errorf("%d trailing bytes", len(payload)-off)
	}
	return nil
}
