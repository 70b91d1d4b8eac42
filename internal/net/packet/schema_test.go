package packet

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAcceptsWellFormedMessages(t *testing.T) {
	for _, raw := range [][]byte{
		EncodeUserConnect("alice", "secret"),
		EncodeUserDisconnect(),
		EncodeMove(MoveForward|MoveLeft, 0.1, 1.5),
		EncodeAttack(42),
		EncodePing(9),
	} {
		env, err := Verify(raw)
		require.NoError(t, err, "type %d", raw[0])
		assert.Equal(t, MsgType(raw[0]), env.Type)
		assert.Len(t, env.Payload, len(raw)-HeaderSize)
	}
}

func TestVerifyRejectsMalformedBuffers(t *testing.T) {
	valid := EncodeMove(MoveForward, 0, 0)

	truncated := valid[:len(valid)-1]

	lengthTooLarge := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint16(lengthTooLarge[1:3], uint16(len(valid)))

	wrongTag := append([]byte(nil), valid...)
	wrongTag[0] = byte(MsgPing) // payload size does not fit the Ping schema

	unknownTag := append([]byte(nil), valid...)
	unknownTag[0] = 200

	trailing := NewWriter(MsgPing)
	trailing.WriteD(1)
	trailing.WriteC(0xFF)

	badString := NewWriter(MsgUserConnect)
	badString.WriteH(10) // claims 10 bytes
	badString.WriteBytes([]byte("abc"))

	tooLong := NewWriter(MsgUserConnect)
	tooLong.WriteS(string(make([]byte, 65)))
	tooLong.WriteS("")

	invalidUTF8 := NewWriter(MsgUserConnect)
	invalidUTF8.WriteH(2)
	invalidUTF8.WriteBytes([]byte{0xC3, 0x28})
	invalidUTF8.WriteS("")

	nanYaw := EncodeMove(MoveForward, 0, float32(math.NaN()))
	infPitch := EncodeMove(MoveForward, float32(math.Inf(-1)), 0)

	cases := map[string][]byte{
		"empty":             nil,
		"short header":      {byte(MsgPing), 4},
		"truncated payload": truncated,
		"length too large":  lengthTooLarge,
		"inconsistent tag":  wrongTag,
		"unknown tag":       unknownTag,
		"trailing bytes":    trailing.Bytes(),
		"truncated string":  badString.Bytes(),
		"string too long":   tooLong.Bytes(),
		"invalid utf-8":     invalidUTF8.Bytes(),
		"nan float":         nanYaw,
		"infinite float":    infPitch,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Verify(raw)
			require.ErrorIs(t, err, ErrVerificationFailed)
		})
	}
}

func TestEveryTypeHasSchemaAndName(t *testing.T) {
	for typ, name := range msgNames {
		_, ok := SchemaFor(typ)
		assert.True(t, ok, "missing schema for %s", name)
		assert.Equal(t, name, typ.String())
	}
	assert.Equal(t, "Unknown(250)", MsgType(250).String())
}

func TestDecodeViewsAfterVerify(t *testing.T) {
	env, err := Verify(EncodeUserConnect("bob", "pw"))
	require.NoError(t, err)
	uc := DecodeUserConnect(NewReader(env.Payload))
	assert.Equal(t, "bob", uc.Name)
	assert.Equal(t, "pw", uc.Password)

	env, err = Verify(EncodeMove(MoveBack, 0.5, -1.25))
	require.NoError(t, err)
	mv := DecodeMove(NewReader(env.Payload))
	assert.Equal(t, Move{Directions: MoveBack, Pitch: 0.5, Yaw: -1.25}, mv)
}

func TestReaderViewsDoNotCopy(t *testing.T) {
	raw := EncodeUserConnect("carol", "x")
	env, err := Verify(raw)
	require.NoError(t, err)

	view := NewReader(env.Payload).ReadStringView()
	require.Equal(t, "carol", string(view))
	raw[HeaderSize+2] = 'k'
	assert.Equal(t, "karol", string(view))
}

func TestReaderPastEndReturnsZero(t *testing.T) {
	r := NewReader([]byte{1})
	assert.Equal(t, byte(1), r.ReadC())
	assert.Zero(t, r.ReadQ())
	assert.Zero(t, r.ReadF())
	assert.Zero(t, r.Remaining())
}
