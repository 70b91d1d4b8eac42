package entity

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/worldsrv/server/internal/core/event"
	"go.uber.org/zap"
)

var (
	ErrUnknownMap    = errors.New("unknown map")
	ErrUnknownEntity = errors.New("unknown entity")
)

// Partition is the owner of map membership. Every live entity is attached to
// exactly one map.
type Partition interface {
	Attach(mapID uint32, id ID) error
	Detach(mapID uint32, id ID) bool
}

type pendingOp struct {
	remove bool
	id     ID
	state  State
}

// Storage holds every live entity. It is owned by the game loop goroutine.
type Storage struct {
	pool     *idPool
	entities map[ID]*Entity
	byPeer   map[uint64]ID
	pending  []pendingOp
	part     Partition
	bus      *event.Bus
	log      *zap.Logger
}

func NewStorage(part Partition, bus *event.Bus, log *zap.Logger) *Storage {
	return &Storage{
		pool:     newIDPool(),
		entities: make(map[ID]*Entity, 1024),
		byPeer:   make(map[uint64]ID),
		pending:  make([]pendingOp, 0, 64),
		part:     part,
		bus:      bus,
		log:      log,
	}
}

// Spawn creates an entity and attaches it to its map. On error nothing is
// left allocated.
func (s *Storage) Spawn(st State) (ID, error) {
	id := s.pool.alloc()
	if err := s.spawnAs(id, st); err != nil {
		s.pool.release(id)
		return 0, err
	}
	return id, nil
}

func (s *Storage) spawnAs(id ID, st State) error {
	e := &Entity{
		ID:          id,
		Kind:        st.Kind,
		Name:        st.Name,
		Position:    st.Position,
		Orientation: st.Orientation,
		Attributes:  make(map[string]float64, len(st.Attributes)),
		Behavior:    st.Behavior,
		MapID:       st.MapID,
		Peer:        st.Peer,
		Group:       st.Group,
	}
	for k, v := range st.Attributes {
		e.Attributes[k] = v
	}
	// The record exists before the attach so the map can read its position.
	s.entities[id] = e
	if err := s.part.Attach(st.MapID, id); err != nil {
		delete(s.entities, id)
		return fmt.Errorf("spawn %q on map %d: %w", st.Name, st.MapID, err)
	}
	if st.Peer != 0 {
		s.byPeer[st.Peer] = id
	}

	event.Emit(s.bus, event.EntitySpawned{
		EntityID:    uint64(id),
		Kind:        uint8(e.Kind),
		MapID:       e.MapID,
		Peer:        e.Peer,
		Name:        e.Name,
		Position:    e.Position,
		Orientation: e.Orientation,
	})
	return nil
}

// Remove detaches the entity from its map, then releases it.
func (s *Storage) Remove(id ID) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	if !s.part.Detach(e.MapID, id) {
		s.log.Warn("entity missing from its map on remove",
			zap.Uint64("entity", uint64(id)),
			zap.Uint32("map", e.MapID),
		)
	}
	delete(s.entities, id)
	if e.Peer != 0 && s.byPeer[e.Peer] == id {
		delete(s.byPeer, e.Peer)
	}
	s.pool.release(id)

	event.Emit(s.bus, event.EntityRemoved{
		EntityID: uint64(id),
		MapID:    e.MapID,
		Peer:     e.Peer,
	})
	return true
}

// Get returns the live entity for id. It never fabricates one.
func (s *Storage) Get(id ID) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// ByPeer returns the entity controlled by a session.
func (s *Storage) ByPeer(peer uint64) (*Entity, bool) {
	id, ok := s.byPeer[peer]
	if !ok {
		return nil, false
	}
	return s.Get(id)
}

// Update applies fn to a live entity. fn must not change ID, MapID or Peer.
func (s *Storage) Update(id ID, fn func(*Entity)) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	fn(e)
	return true
}

// Move sets position and orientation and emits EntityUpdated.
func (s *Storage) Move(id ID, pos mgl32.Vec3, orientation float32) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.Position = pos
	e.Orientation = orientation
	event.Emit(s.bus, event.EntityUpdated{
		EntityID:    uint64(id),
		MapID:       e.MapID,
		Position:    pos,
		Orientation: orientation,
	})
	return true
}

// Reassign moves an entity between maps: detach from the old one, attach to
// the new one. If the attach fails the entity goes back where it was.
func (s *Storage) Reassign(id ID, mapID uint32) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("reassign %d: %w", id, ErrUnknownEntity)
	}
	if e.MapID == mapID {
		return nil
	}
	old := e.MapID
	s.part.Detach(old, id)
	if err := s.part.Attach(mapID, id); err != nil {
		if rerr := s.part.Attach(old, id); rerr != nil {
			s.log.Error("entity lost its map on failed reassign",
				zap.Uint64("entity", uint64(id)),
				zap.Error(rerr),
			)
		}
		return fmt.Errorf("reassign %d to map %d: %w", id, mapID, err)
	}
	e.MapID = mapID
	return nil
}

// QueueSpawn reserves an id and defers the spawn to the next FlushPending.
// If the spawn fails at flush time the id is released and never becomes live.
func (s *Storage) QueueSpawn(st State) ID {
	id := s.pool.alloc()
	s.pending = append(s.pending, pendingOp{id: id, state: st})
	return id
}

// QueueRemove defers a removal to the next FlushPending.
func (s *Storage) QueueRemove(id ID) {
	s.pending = append(s.pending, pendingOp{remove: true, id: id})
}

// FlushPending applies queued spawns and removals in request order. Ops
// queued while flushing wait for the next flush.
func (s *Storage) FlushPending() {
	ops := s.pending
	s.pending = make([]pendingOp, 0, cap(ops))
	for _, op := range ops {
		if op.remove {
			s.Remove(op.id)
			continue
		}
		if err := s.spawnAs(op.id, op.state); err != nil {
			s.pool.release(op.id)
			s.log.Warn("deferred spawn failed", zap.Error(err))
		}
	}
}

// CancelSpawn drops a queued spawn owned by peer and releases its id. It is
// how a session that leaves before its player entity went live avoids
// leaving an orphan behind.
func (s *Storage) CancelSpawn(peer uint64) (ID, bool) {
	if peer == 0 {
		return 0, false
	}
	for i, op := range s.pending {
		if op.remove || op.state.Peer != peer {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		s.pool.release(op.id)
		return op.id, true
	}
	return 0, false
}

// EachQueued calls fn for every spawn still waiting for FlushPending.
func (s *Storage) EachQueued(fn func(id ID, st State)) {
	for _, op := range s.pending {
		if !op.remove {
			fn(op.id, op.state)
		}
	}
}

// Pending reports the number of queued operations.
func (s *Storage) Pending() int { return len(s.pending) }

func (s *Storage) Len() int { return len(s.entities) }

// Alive reports whether id refers to a live entity.
func (s *Storage) Alive(id ID) bool {
	_, ok := s.entities[id]
	return ok && s.pool.alive(id)
}

// Each calls fn for every live entity in unspecified order.
func (s *Storage) Each(fn func(*Entity)) {
	for _, e := range s.entities {
		fn(e)
	}
}
