package ai

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrMissingState is returned by a strategy that needs actor data it was not
// given (no target, no script function, ...).
var ErrMissingState = errors.New("steering: missing actor state")

// MoveVector is one tick's steering output: a linear velocity in units per
// second and an angular rate in radians per second.
type MoveVector struct {
	Linear   mgl32.Vec3
	Rotation float32
}

// Zero is the no-op move.
var Zero = MoveVector{}

func (m MoveVector) IsZero() bool {
	return m == Zero
}

func (m MoveVector) finite() bool {
	for _, f := range [4]float32{m.Linear[0], m.Linear[1], m.Linear[2], m.Rotation} {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

// Intent is the latest movement input received from a player's client.
type Intent struct {
	Directions uint8
	Yaw        float32
}

// Actor is the read-only view of an entity a strategy works on.
type Actor struct {
	ID          uint64
	Position    mgl32.Vec3
	Orientation float32
	Intent      Intent
}

// Steering computes a MoveVector for one actor. Implementations must not
// mutate anything; the map applies the result.
type Steering interface {
	Execute(a Actor, speed float32, rnd *rand.Rand) (MoveVector, error)
}

// FromRadians returns the unit heading on the XZ plane for an orientation.
func FromRadians(theta float32) mgl32.Vec3 {
	s, c := math.Sincos(float64(theta))
	return mgl32.Vec3{float32(c), 0, float32(s)}
}

// Compute runs s and converts every failure (error, panic, non-finite
// output) into the zero move. The returned error is for logging only.
func Compute(s Steering, a Actor, speed float32, rnd *rand.Rand) (mv MoveVector, err error) {
	if s == nil {
		return Zero, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			mv, err = Zero, fmt.Errorf("steering panic: %v", rec)
		}
	}()
	mv, err = s.Execute(a, speed, rnd)
	if err != nil {
		return Zero, err
	}
	if !mv.finite() {
		return Zero, fmt.Errorf("steering produced non-finite move %v", mv)
	}
	return mv, nil
}
