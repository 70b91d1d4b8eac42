package world

import (
	"fmt"
	"math"

	"github.com/worldsrv/server/internal/ai"
	"github.com/worldsrv/server/internal/core/event"
	"github.com/worldsrv/server/internal/entity"
	"go.uber.org/zap"
)

// spawnGroup is a SpawnGroup bound to its map and resolved strategy.
type spawnGroup struct {
	m        *Map
	def      SpawnGroup
	steering ai.Steering
	live     int
}

type respawnTimer struct {
	group *spawnGroup
	ticks int
}

// SpawnMgr keeps every map's NPC groups at their configured size. Dead or
// removed NPCs come back after a fixed number of ticks at a random point.
type SpawnMgr struct {
	world        *World
	behaviors    *ai.Registry
	respawnTicks int
	groups       []*spawnGroup
	tracked      map[entity.ID]*spawnGroup
	timers       []respawnTimer
	log          *zap.Logger
}

func NewSpawnMgr(w *World, behaviors *ai.Registry, respawnTicks int, bus *event.Bus, log *zap.Logger) *SpawnMgr {
	s := &SpawnMgr{
		world:        w,
		behaviors:    behaviors,
		respawnTicks: respawnTicks,
		tracked:      make(map[entity.ID]*spawnGroup),
		log:          log,
	}
	event.Subscribe(bus, s.onRemoved)
	return s
}

// Populate resolves every map's spawn groups and queues the initial NPCs.
// They become live at the next FlushPending.
func (s *SpawnMgr) Populate() error {
	var groups []*spawnGroup
	for _, m := range s.world.Maps() {
		for _, def := range m.spawns {
			if def.Count < 0 {
				return fmt.Errorf("map %d spawn %q: negative count", m.id, def.Name)
			}
			st, err := s.behaviors.Resolve(def.Behavior)
			if err != nil {
				return fmt.Errorf("map %d spawn %q: %w", m.id, def.Name, err)
			}
			groups = append(groups, &spawnGroup{m: m, def: def, steering: st})
		}
	}

	s.groups = groups
	total := 0
	for _, g := range groups {
		for i := 0; i < g.def.Count; i++ {
			s.spawnOne(g)
			total++
		}
	}
	s.log.Info("population queued", zap.Int("groups", len(groups)), zap.Int("npcs", total))
	return nil
}

func (s *SpawnMgr) spawnOne(g *spawnGroup) {
	id := s.world.Entities().QueueSpawn(entity.State{
		Kind:        entity.KindNPC,
		Name:        g.def.Name,
		Position:    g.m.RandomPoint(),
		Orientation: g.m.rnd.Float32() * 2 * math.Pi,
		Attributes: map[string]float64{
			entity.AttrHealth:   g.def.Health,
			entity.AttrStrength: g.def.Strength,
		},
		Behavior: entity.Behavior{
			Name:     g.def.Behavior,
			Steering: g.steering,
			Speed:    g.def.Speed,
		},
		MapID: g.m.id,
		Group: g.def.Name,
	})
	s.tracked[id] = g
	g.live++
}

func (s *SpawnMgr) onRemoved(ev event.EntityRemoved) {
	id := entity.ID(ev.EntityID)
	g, ok := s.tracked[id]
	if !ok {
		return
	}
	delete(s.tracked, id)
	g.live--
	s.timers = append(s.timers, respawnTimer{group: g, ticks: s.respawnTicks})
}

// Tick counts respawn timers down and queues the NPCs that are due.
func (s *SpawnMgr) Tick() {
	kept := s.timers[:0]
	for _, t := range s.timers {
		t.ticks--
		if t.ticks > 0 {
			kept = append(kept, t)
			continue
		}
		if t.group.live < t.group.def.Count {
			s.spawnOne(t.group)
		}
	}
	s.timers = kept
}

// Live reports how many NPCs of a group are alive or queued.
func (s *SpawnMgr) Live(mapID uint32, group string) int {
	n := 0
	for _, g := range s.groups {
		if g.m.id == mapID && g.def.Name == group {
			n += g.live
		}
	}
	return n
}

// PendingRespawns reports the number of running respawn timers.
func (s *SpawnMgr) PendingRespawns() int { return len(s.timers) }
