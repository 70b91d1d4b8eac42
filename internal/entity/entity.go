package entity

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/worldsrv/server/internal/ai"
)

type Kind uint8

const (
	KindPlayer Kind = 1
	KindNPC    Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNPC:
		return "npc"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Well-known attribute names.
const (
	AttrHealth   = "health"
	AttrStrength = "strength"
)

// Behavior binds an entity to a steering strategy.
type Behavior struct {
	Name     string // behavior string the strategy was resolved from
	Steering ai.Steering
	Speed    float32
}

// Entity is the canonical record for one actor.
type Entity struct {
	ID          ID
	Kind        Kind
	Name        string
	Position    mgl32.Vec3
	Orientation float32 // radians, [0, 2π)
	Attributes  map[string]float64
	Behavior    Behavior
	MapID       uint32
	Peer        uint64 // owning session, 0 for NPCs
	Group       string // spawn group for NPCs, empty otherwise
	Intent      ai.Intent
}

// Actor returns the read-only view handed to steering.
func (e *Entity) Actor() ai.Actor {
	return ai.Actor{
		ID:          uint64(e.ID),
		Position:    e.Position,
		Orientation: e.Orientation,
		Intent:      e.Intent,
	}
}

func (e *Entity) Attr(name string) float64 {
	return e.Attributes[name]
}

func (e *Entity) SetAttr(name string, v float64) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]float64)
	}
	e.Attributes[name] = v
}

// State describes an entity to be spawned.
type State struct {
	Kind        Kind
	Name        string
	Position    mgl32.Vec3
	Orientation float32
	Attributes  map[string]float64
	Behavior    Behavior
	MapID       uint32
	Peer        uint64
	Group       string
}
