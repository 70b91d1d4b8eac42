package system

import (
	"time"

	"github.com/worldsrv/server/internal/core/event"
	coresys "github.com/worldsrv/server/internal/core/system"
)

// EventSystem delivers the events raised so far this tick. Phase 3
// (PostUpdate), after the world moved.
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.Dispatch()
}
