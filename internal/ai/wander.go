package ai

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultWanderRotation is the turn rate used when Wander gets no parameter.
var DefaultWanderRotation = mgl32.DegToRad(10)

// Wander walks forward along the current heading and turns by a random amount
// scaled by Rotation.
type Wander struct {
	Rotation float32
	Shape    Perturbation
}

// NewWander parses the behavior parameter, a turn rate in radians per second.
// The rate must be a finite number >= 0; 0 walks straight ahead.
func NewWander(param string, shape Perturbation) (Wander, error) {
	param = strings.TrimSpace(param)
	if param == "" {
		return Wander{Rotation: DefaultWanderRotation, Shape: shape}, nil
	}
	r, err := strconv.ParseFloat(param, 32)
	if err != nil {
		return Wander{}, fmt.Errorf("wander rotation %q: %w", param, err)
	}
	if err := checkRate(r); err != nil {
		return Wander{}, fmt.Errorf("wander rotation %q: %w", param, err)
	}
	return Wander{Rotation: float32(r), Shape: shape}, nil
}

func checkRate(r float64) error {
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return fmt.Errorf("must be a finite number >= 0")
	}
	return nil
}

func (w Wander) Execute(a Actor, speed float32, rnd *rand.Rand) (MoveVector, error) {
	if rnd == nil {
		return Zero, fmt.Errorf("wander: %w: no random source", ErrMissingState)
	}
	return MoveVector{
		Linear:   FromRadians(a.Orientation).Mul(speed),
		Rotation: w.Shape.Sample(rnd) * w.Rotation,
	}, nil
}
