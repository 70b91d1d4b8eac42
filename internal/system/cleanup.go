package system

import (
	"time"

	"github.com/worldsrv/server/internal/core/event"
	coresys "github.com/worldsrv/server/internal/core/system"
	"github.com/worldsrv/server/internal/entity"
)

// CleanupSystem applies removals raised after the pre-update flush (kills
// from late handlers, failed handoffs) and delivers their events, so the
// next tick starts from a settled world. Phase 6 (Cleanup).
type CleanupSystem struct {
	store *entity.Storage
	bus   *event.Bus
}

func NewCleanupSystem(store *entity.Storage, bus *event.Bus) *CleanupSystem {
	return &CleanupSystem{store: store, bus: bus}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.store.FlushPending()
	s.bus.Dispatch()
}
