package packet

import "fmt"

// MsgType is the envelope tag. Client and server messages share one space so
// a single verifier covers both directions.
type MsgType uint8

// Client → server.
const (
	MsgUserConnect    MsgType = 1
	MsgUserDisconnect MsgType = 2
	MsgMove           MsgType = 3
	MsgAttack         MsgType = 4
	MsgPing           MsgType = 5
)

// Server → client.
const (
	MsgSeed         MsgType = 64
	MsgUserSpawn    MsgType = 65
	MsgEntitySpawn  MsgType = 66
	MsgEntityRemove MsgType = 67
	MsgEntityUpdate MsgType = 68
	MsgAuthFailed   MsgType = 69
	MsgPong         MsgType = 70
)

var msgNames = map[MsgType]string{
	MsgUserConnect:    "UserConnect",
	MsgUserDisconnect: "UserDisconnect",
	MsgMove:           "Move",
	MsgAttack:         "Attack",
	MsgPing:           "Ping",
	MsgSeed:           "Seed",
	MsgUserSpawn:      "UserSpawn",
	MsgEntitySpawn:    "EntitySpawn",
	MsgEntityRemove:   "EntityRemove",
	MsgEntityUpdate:   "EntityUpdate",
	MsgAuthFailed:     "AuthFailed",
	MsgPong:           "Pong",
}

func (t MsgType) String() string {
	if n, ok := msgNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateHandshake      SessionState = iota
	StateAuthenticating              // credentials handed to the auth worker
	StateInWorld                     // player entity spawned
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateAuthenticating:
		return "Authenticating"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Move direction bits carried by MsgMove.
const (
	MoveForward uint8 = 1 << iota
	MoveBack
	MoveLeft
	MoveRight

	MoveMask = MoveForward | MoveBack | MoveLeft | MoveRight
)
