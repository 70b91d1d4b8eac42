package ai

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/worldsrv/server/internal/net/packet"
)

// Idle never moves.
type Idle struct{}

func (Idle) Execute(Actor, float32, *rand.Rand) (MoveVector, error) {
	return Zero, nil
}

// Seek heads straight for a fixed point and turns to face it. Flee does the
// opposite.
type Seek struct {
	Target mgl32.Vec3
	Flee   bool
}

// arriveRadius stops seekers from jittering around their target.
const arriveRadius = 0.05

func (s Seek) Execute(a Actor, speed float32, _ *rand.Rand) (MoveVector, error) {
	d := s.Target.Sub(a.Position)
	d[1] = 0
	if s.Flee {
		d = d.Mul(-1)
	}
	dist := d.Len()
	if dist < arriveRadius {
		return Zero, nil
	}
	want := float32(math.Atan2(float64(d[2]), float64(d[0])))
	return MoveVector{
		Linear:   d.Mul(speed / dist),
		Rotation: angleDelta(a.Orientation, want),
	}, nil
}

// angleDelta returns the signed shortest turn from 'from' to 'to'.
func angleDelta(from, to float32) float32 {
	d := math.Mod(float64(to-from), 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d < -math.Pi {
		d += 2 * math.Pi
	}
	return float32(d)
}

// Input moves a player according to the direction bits of its last Move
// message, relative to its yaw. Orientation is set by the handler, so no
// rotation is produced here.
type Input struct{}

func (Input) Execute(a Actor, speed float32, _ *rand.Rand) (MoveVector, error) {
	var dir mgl32.Vec3
	fwd := FromRadians(a.Intent.Yaw)
	right := mgl32.Vec3{-fwd[2], 0, fwd[0]}
	bits := a.Intent.Directions
	if bits&packet.MoveForward != 0 {
		dir = dir.Add(fwd)
	}
	if bits&packet.MoveBack != 0 {
		dir = dir.Sub(fwd)
	}
	if bits&packet.MoveRight != 0 {
		dir = dir.Add(right)
	}
	if bits&packet.MoveLeft != 0 {
		dir = dir.Sub(right)
	}
	if dir.Len() < 1e-6 {
		return Zero, nil
	}
	return MoveVector{Linear: dir.Normalize().Mul(speed)}, nil
}
