package system

import (
	"time"

	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/entity"
	"github.com/worldsrv/server/internal/world"
)

// LifecycleSystem applies the spawns and removals queued by the input phase
// and ticks respawn timers. Phase 1 (PreUpdate).
type LifecycleSystem struct {
	store  *entity.Storage
	spawns *world.SpawnMgr
}

func NewLifecycleSystem(store *entity.Storage, spawns *world.SpawnMgr) *LifecycleSystem {
	return &LifecycleSystem{store: store, spawns: spawns}
}

func (s *LifecycleSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *LifecycleSystem) Update(_ time.Duration) {
	s.store.FlushPending()
	if s.spawns != nil {
		// respawns queued here become live at the next flush
		s.spawns.Tick()
	}
}
