package world

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/worldsrv/server/internal/ai"
	"github.com/worldsrv/server/internal/entity"
	"go.uber.org/zap"
)

// Policy decides what happens to an entity that steps outside its map.
type Policy uint8

const (
	PolicyClamp Policy = iota
	PolicyHandoff
)

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "clamp":
		return PolicyClamp, nil
	case "handoff":
		return PolicyHandoff, nil
	}
	return 0, fmt.Errorf("unknown out-of-bounds policy %q", s)
}

func (p Policy) String() string {
	if p == PolicyHandoff {
		return "handoff"
	}
	return "clamp"
}

// Bounds is an axis-aligned box, inclusive on every face.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (b Bounds) Valid() bool {
	for i := 0; i < 3; i++ {
		if b.Min[i] > b.Max[i] {
			return false
		}
	}
	return b.Max[0] > b.Min[0] && b.Max[2] > b.Min[2]
}

func (b Bounds) Contains(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

func (b Bounds) Clamp(p mgl32.Vec3) mgl32.Vec3 {
	for i := 0; i < 3; i++ {
		p[i] = mgl32.Clamp(p[i], b.Min[i], b.Max[i])
	}
	return p
}

// handoff is a move that left the map under PolicyHandoff; the world decides
// where the entity ends up once every map has advanced.
type handoff struct {
	id          entity.ID
	from        *Map
	position    mgl32.Vec3
	orientation float32
}

// Map is a spatial partition that owns a subset of entities and advances
// them once per tick. Accessed only from the game loop goroutine.
type Map struct {
	id      uint32
	name    string
	bounds  Bounds
	policy  Policy
	members []entity.ID // insertion order
	index   map[entity.ID]struct{}
	grid    *ChunkGrid
	rnd     *rand.Rand
	ready   bool
	store   *entity.Storage
	spawns  []SpawnGroup
	log     *zap.Logger
}

func newMap(def MapDef, policy Policy, chunkSize int, seed int64, store *entity.Storage, log *zap.Logger) *Map {
	return &Map{
		id:      def.ID,
		name:    def.Name,
		bounds:  def.Bounds(),
		policy:  policy,
		members: make([]entity.ID, 0, 64),
		index:   make(map[entity.ID]struct{}, 64),
		grid:    NewChunkGrid(chunkSize),
		rnd:     rand.New(rand.NewSource(seed)),
		store:   store,
		spawns:  def.Spawns,
		log:     log.With(zap.Uint32("map", def.ID)),
	}
}

func (m *Map) ID() uint32       { return m.id }
func (m *Map) Name() string     { return m.name }
func (m *Map) Bounds() Bounds   { return m.bounds }
func (m *Map) Policy() Policy   { return m.policy }
func (m *Map) Ready() bool      { return m.ready }
func (m *Map) Len() int         { return len(m.members) }
func (m *Map) Rand() *rand.Rand { return m.rnd }

// AddEntity makes the map the owner of id. Adding twice is a no-op.
func (m *Map) AddEntity(id entity.ID) {
	if _, ok := m.index[id]; ok {
		return
	}
	m.index[id] = struct{}{}
	m.members = append(m.members, id)
	if e, ok := m.store.Get(id); ok {
		m.grid.Place(id, e.Position)
	}
}

// RemoveEntity gives up ownership of id.
func (m *Map) RemoveEntity(id entity.ID) bool {
	if _, ok := m.index[id]; !ok {
		return false
	}
	delete(m.index, id)
	m.grid.Remove(id)
	for i, mid := range m.members {
		if mid == id {
			m.members = append(m.members[:i], m.members[i+1:]...)
			break
		}
	}
	return true
}

func (m *Map) Contains(id entity.ID) bool {
	_, ok := m.index[id]
	return ok
}

// Entities returns a copy of the owned ids in insertion order.
func (m *Map) Entities() []entity.ID {
	out := make([]entity.ID, len(m.members))
	copy(out, m.members)
	return out
}

// Nearby returns the owned entities in the chunks around p.
func (m *Map) Nearby(p mgl32.Vec3) []entity.ID {
	return m.grid.Nearby(p)
}

// Advance runs steering for every owned entity and applies the result.
// Moves that leave the map under PolicyHandoff are returned instead of
// applied.
func (m *Map) Advance(dt time.Duration) []handoff {
	secs := float32(dt.Seconds())
	var out []handoff

	// Iterate a snapshot; nothing in here changes membership.
	for _, id := range m.Entities() {
		e, ok := m.store.Get(id)
		if !ok {
			continue
		}
		mv, err := ai.Compute(e.Behavior.Steering, e.Actor(), e.Behavior.Speed, m.rnd)
		if err != nil {
			m.log.Warn("steering failed",
				zap.Uint64("entity", uint64(id)),
				zap.String("behavior", e.Behavior.Name),
				zap.Error(err),
			)
			continue
		}
		if mv.IsZero() {
			continue
		}

		pos := e.Position.Add(mv.Linear.Mul(secs))
		orientation := NormalizeAngle(e.Orientation + mv.Rotation*secs)

		if !m.bounds.Contains(pos) {
			if m.policy == PolicyHandoff {
				out = append(out, handoff{id: id, from: m, position: pos, orientation: orientation})
				continue
			}
			pos = m.bounds.Clamp(pos)
		}
		m.store.Move(id, pos, orientation)
		m.grid.Place(id, pos)
	}
	return out
}

// RandomPoint returns a point inside the bounds on the floor (min Y).
func (m *Map) RandomPoint() mgl32.Vec3 {
	b := m.bounds
	return mgl32.Vec3{
		b.Min[0] + m.rnd.Float32()*(b.Max[0]-b.Min[0]),
		b.Min[1],
		b.Min[2] + m.rnd.Float32()*(b.Max[2]-b.Min[2]),
	}
}

// NormalizeAngle wraps a radian angle into [0, 2π).
func NormalizeAngle(a float32) float32 {
	r := math.Mod(float64(a), 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	f := float32(r)
	if f >= 2*math.Pi {
		// float64 values just under 2π can round up in float32
		return 0
	}
	return f
}
