package packet

import "github.com/go-gl/mathgl/mgl32"

// Client message views. Decode* must only be called on a verified payload.

type UserConnect struct {
	Name     string
	Password string
}

func DecodeUserConnect(r *Reader) UserConnect {
	return UserConnect{Name: r.ReadS(), Password: r.ReadS()}
}

type Move struct {
	Directions uint8
	Pitch      float32
	Yaw        float32
}

func DecodeMove(r *Reader) Move {
	return Move{Directions: r.ReadC(), Pitch: r.ReadF(), Yaw: r.ReadF()}
}

type Attack struct {
	Target uint64
}

func DecodeAttack(r *Reader) Attack {
	return Attack{Target: r.ReadQ()}
}

type Ping struct {
	Seq uint32
}

func DecodePing(r *Reader) Ping {
	return Ping{Seq: r.ReadD()}
}

// Client message builders, used by tests and tooling.

func EncodeUserConnect(name, password string) []byte {
	w := NewWriter(MsgUserConnect)
	w.WriteS(name)
	w.WriteS(password)
	return w.Bytes()
}

func EncodeUserDisconnect() []byte {
	return NewWriter(MsgUserDisconnect).Bytes()
}

func EncodeMove(directions uint8, pitch, yaw float32) []byte {
	w := NewWriter(MsgMove)
	w.WriteC(directions)
	w.WriteF(pitch)
	w.WriteF(yaw)
	return w.Bytes()
}

func EncodeAttack(target uint64) []byte {
	w := NewWriter(MsgAttack)
	w.WriteQ(target)
	return w.Bytes()
}

func EncodePing(seq uint32) []byte {
	w := NewWriter(MsgPing)
	w.WriteD(seq)
	return w.Bytes()
}

// Server messages.

func EncodeSeed(seed uint64) []byte {
	w := NewWriter(MsgSeed)
	w.WriteQ(seed)
	return w.Bytes()
}

func EncodeUserSpawn(id uint64, name string, pos mgl32.Vec3) []byte {
	w := NewWriter(MsgUserSpawn)
	w.WriteQ(id)
	w.WriteS(name)
	writeVec3(w, pos)
	return w.Bytes()
}

func EncodeEntitySpawn(id uint64, kind uint8, pos mgl32.Vec3, orientation float32) []byte {
	w := NewWriter(MsgEntitySpawn)
	w.WriteQ(id)
	w.WriteC(kind)
	writeVec3(w, pos)
	w.WriteF(orientation)
	return w.Bytes()
}

func EncodeEntityRemove(id uint64) []byte {
	w := NewWriter(MsgEntityRemove)
	w.WriteQ(id)
	return w.Bytes()
}

func EncodeEntityUpdate(id uint64, pos mgl32.Vec3, orientation float32) []byte {
	w := NewWriter(MsgEntityUpdate)
	w.WriteQ(id)
	writeVec3(w, pos)
	w.WriteF(orientation)
	return w.Bytes()
}

func EncodeAuthFailed() []byte {
	return NewWriter(MsgAuthFailed).Bytes()
}

func EncodePong(seq uint32) []byte {
	w := NewWriter(MsgPong)
	w.WriteD(seq)
	return w.Bytes()
}

func writeVec3(w *Writer, v mgl32.Vec3) {
	w.WriteF(v.X())
	w.WriteF(v.Y())
	w.WriteF(v.Z())
}

// ReadVec3 reads three float32 values.
func (r *Reader) ReadVec3() mgl32.Vec3 {
	return mgl32.Vec3{r.ReadF(), r.ReadF(), r.ReadF()}
}
