package ai

import (
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/worldsrv/server/internal/scripting"
)

// Scripter runs named steering functions.
type Scripter interface {
	Has(fn string) bool
	Steer(fn string, in scripting.SteerContext) (scripting.SteerResult, error)
}

// Lua delegates to a script function fn(ctx) -> x, y, z, rotation.
type Lua struct {
	Engine Scripter
	Fn     string
}

func (l Lua) Execute(a Actor, speed float32, rnd *rand.Rand) (MoveVector, error) {
	if l.Engine == nil {
		return Zero, fmt.Errorf("lua %s: %w: no script engine", l.Fn, ErrMissingState)
	}
	var r float64
	if rnd != nil {
		r = rnd.Float64()
	}
	res, err := l.Engine.Steer(l.Fn, scripting.SteerContext{
		EntityID:    a.ID,
		X:           float64(a.Position[0]),
		Y:           float64(a.Position[1]),
		Z:           float64(a.Position[2]),
		Orientation: float64(a.Orientation),
		Speed:       float64(speed),
		Random:      r,
	})
	if err != nil {
		return Zero, err
	}
	return MoveVector{
		Linear:   mgl32.Vec3{float32(res.X), float32(res.Y), float32(res.Z)},
		Rotation: float32(res.Rotation),
	}, nil
}
