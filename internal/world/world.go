package world

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/worldsrv/server/internal/config"
	"github.com/worldsrv/server/internal/core/event"
	"github.com/worldsrv/server/internal/entity"
	"go.uber.org/zap"
)

// World is the registry of maps and the owner of entity storage. It is the
// partition storage attaches entities through.
// Accessed only from the game loop goroutine.
type World struct {
	cfg      config.WorldConfig
	seed     uint64
	provider Provider
	maps     map[uint32]*Map
	order    []*Map
	store    *entity.Storage
	bus      *event.Bus
	log      *zap.Logger
}

func New(cfg config.WorldConfig, seed uint64, provider Provider, bus *event.Bus, log *zap.Logger) *World {
	w := &World{
		cfg:      cfg,
		seed:     seed,
		provider: provider,
		maps:     make(map[uint32]*Map),
		bus:      bus,
		log:      log,
	}
	w.store = entity.NewStorage(w, bus, log)
	event.Subscribe(bus, w.onMapCreated)
	return w
}

// Init builds every map from the provider. Any invalid definition fails the
// whole load and leaves the world empty.
func (w *World) Init() error {
	defs, err := w.provider.LoadMaps()
	if err != nil {
		return fmt.Errorf("load maps: %w", err)
	}
	if len(defs) == 0 {
		return fmt.Errorf("load maps: no maps defined")
	}
	defaultPolicy, err := ParsePolicy(w.cfg.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("world default policy: %w", err)
	}

	built := make(map[uint32]*Map, len(defs))
	order := make([]*Map, 0, len(defs))
	for _, def := range defs {
		if _, dup := built[def.ID]; dup {
			return fmt.Errorf("map %d: duplicate id", def.ID)
		}
		if !def.Bounds().Valid() {
			return fmt.Errorf("map %d (%s): invalid bounds %v..%v", def.ID, def.Name, def.Min, def.Max)
		}
		policy := defaultPolicy
		if def.Policy != "" {
			if policy, err = ParsePolicy(def.Policy); err != nil {
				return fmt.Errorf("map %d (%s): %w", def.ID, def.Name, err)
			}
		}
		m := newMap(def, policy, w.cfg.ChunkSize, int64(w.seed)^int64(def.ID), w.store, w.log)
		built[def.ID] = m
		order = append(order, m)
	}

	w.maps = built
	w.order = order
	for _, m := range order {
		event.Emit(w.bus, event.MapCreated{MapID: m.id, Name: m.name})
		w.log.Info("map loaded",
			zap.Uint32("map", m.id),
			zap.String("name", m.name),
			zap.Stringer("policy", m.policy),
		)
	}
	return nil
}

func (w *World) onMapCreated(ev event.MapCreated) {
	if m, ok := w.maps[ev.MapID]; ok {
		m.ready = true
	}
}

// Map looks up a map. Unknown ids always return (nil, false).
func (w *World) Map(id uint32) (*Map, bool) {
	m, ok := w.maps[id]
	return m, ok
}

// Maps returns the maps in load order.
func (w *World) Maps() []*Map {
	out := make([]*Map, len(w.order))
	copy(out, w.order)
	return out
}

func (w *World) Entities() *entity.Storage { return w.store }

// Attach implements entity.Partition.
func (w *World) Attach(mapID uint32, id entity.ID) error {
	m, ok := w.maps[mapID]
	if !ok {
		return fmt.Errorf("map %d: %w", mapID, entity.ErrUnknownMap)
	}
	m.AddEntity(id)
	return nil
}

// Detach implements entity.Partition.
func (w *World) Detach(mapID uint32, id entity.ID) bool {
	m, ok := w.maps[mapID]
	if !ok {
		return false
	}
	return m.RemoveEntity(id)
}

// Update advances every ready map once, in load order, then settles entities
// that crossed a map edge.
func (w *World) Update(dt time.Duration) {
	var pending []handoff
	for _, m := range w.order {
		if !m.ready {
			continue
		}
		pending = append(pending, m.Advance(dt)...)
	}
	for _, h := range pending {
		w.settle(h)
	}
}

func (w *World) settle(h handoff) {
	if target := w.mapContaining(h.position, h.from); target != nil {
		if err := w.store.Reassign(h.id, target.id); err == nil {
			w.store.Move(h.id, h.position, h.orientation)
			target.grid.Place(h.id, h.position)
			w.log.Debug("entity handed off",
				zap.Uint64("entity", uint64(h.id)),
				zap.Uint32("from", h.from.id),
				zap.Uint32("to", target.id),
			)
			return
		}
	}
	pos := h.from.bounds.Clamp(h.position)
	w.store.Move(h.id, pos, h.orientation)
	h.from.grid.Place(h.id, pos)
}

// mapContaining finds the first ready map other than skip whose bounds hold p.
func (w *World) mapContaining(p mgl32.Vec3, skip *Map) *Map {
	for _, m := range w.order {
		if m == skip || !m.ready {
			continue
		}
		if m.bounds.Contains(p) {
			return m
		}
	}
	return nil
}

// Shutdown removes every entity, detaching each from its map first, then
// drops the maps.
func (w *World) Shutdown() {
	for _, m := range w.order {
		for _, id := range m.Entities() {
			w.store.Remove(id)
		}
	}
	w.maps = make(map[uint32]*Map)
	w.order = nil
	w.log.Info("world shut down")
}
