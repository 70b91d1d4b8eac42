package event

import "github.com/go-gl/mathgl/mgl32"

// Events emitted to external collaborators. Ids are raw uint64 values so this
// package stays free of simulation imports.

type EntitySpawned struct {
	EntityID    uint64
	Kind        uint8
	MapID       uint32
	Peer        uint64
	Name        string
	Position    mgl32.Vec3
	Orientation float32
}

type EntityRemoved struct {
	EntityID uint64
	MapID    uint32
	Peer     uint64
}

type EntityUpdated struct {
	EntityID    uint64
	MapID       uint32
	Position    mgl32.Vec3
	Orientation float32
}

type ConnectionEstablished struct {
	SessionID uint64
	Addr      string
}

type ConnectionLost struct {
	SessionID uint64
	EntityID  uint64 // zero when the session never entered the world
	Reason    string
}

type AuthFailed struct {
	SessionID uint64
	Name      string
	Reason    string
}

// Consumed by the world.

// MapCreated signals that a map finished loading and may start ticking.
type MapCreated struct {
	MapID uint32
	Name  string
}
