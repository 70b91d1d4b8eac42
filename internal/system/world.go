package system

import (
	"time"

	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/world"
)

// WorldSystem advances every ready map by one tick. Phase 2 (Update).
type WorldSystem struct {
	world *world.World
}

func NewWorldSystem(w *world.World) *WorldSystem {
	return &WorldSystem{world: w}
}

func (s *WorldSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *WorldSystem) Update(dt time.Duration) {
	s.world.Update(dt)
}
