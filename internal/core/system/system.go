package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain network queues, dispatch packets
	PhasePreUpdate               // 1: apply deferred spawns/despawns, population
	PhaseUpdate                  // 2: world + AI
	PhasePostUpdate              // 3: timeouts, tick event dispatch
	PhaseOutput                  // 4: flush outbound packets
	PhasePersist                 // 5: async snapshots
	PhaseCleanup                 // 6: deferred ops raised during the tick
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// System is one unit of per-tick work.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
