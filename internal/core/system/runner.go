package system

import (
	"sort"
	"time"
)

// Runner executes the tick's systems in phase order. For this server that
// means every packet visible at tick start is dispatched (Input) before
// queued spawns and removals go live (PreUpdate), the world advances only
// after both (Update), timeouts and events see the moved state (PostUpdate),
// clients get the tick's updates in one flush (Output), snapshots read the
// settled tick (Persist), and ops raised late in the tick are applied before
// the next one starts (Cleanup). Systems sharing a phase run in registration
// order.
type Runner struct {
	systems []System
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
	}
}

// Register inserts s after every system of the same or an earlier phase, so
// the slice is always in run order.
func (r *Runner) Register(s System) {
	at := sort.Search(len(r.systems), func(i int) bool {
		return r.systems[i].Phase() > s.Phase()
	})
	r.systems = append(r.systems, nil)
	copy(r.systems[at+1:], r.systems[at:])
	r.systems[at] = s
}

// Tick runs every phase once. Phases never overlap.
func (r *Runner) Tick(dt time.Duration) {
	for _, s := range r.systems {
		s.Update(dt)
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	start := sort.Search(len(r.systems), func(i int) bool {
		return r.systems[i].Phase() >= phase
	})
	for _, s := range r.systems[start:] {
		if s.Phase() != phase {
			return
		}
		s.Update(dt)
	}
}

func (r *Runner) Len() int { return len(r.systems) }
