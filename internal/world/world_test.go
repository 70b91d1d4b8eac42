package world

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldsrv/server/internal/ai"
	"github.com/worldsrv/server/internal/config"
	"github.com/worldsrv/server/internal/core/event"
	"github.com/worldsrv/server/internal/entity"
	"go.uber.org/zap"
)

func testConfig() config.WorldConfig {
	return config.Defaults().World
}

func box(id uint32, minX, maxX float32) MapDef {
	return MapDef{
		ID:   id,
		Name: "m",
		Min:  [3]float32{minX, 0, -100},
		Max:  [3]float32{maxX, 10, 100},
	}
}

// newTestWorld builds and initializes a world and delivers MapCreated so the
// maps are ready to tick.
func newTestWorld(t *testing.T, cfg config.WorldConfig, defs ...MapDef) (*World, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	w := New(cfg, 1, StaticProvider(defs), bus, zap.NewNop())
	require.NoError(t, w.Init())
	bus.Dispatch()
	return w, bus
}

func TestMapLookup(t *testing.T) {
	w, _ := newTestWorld(t, testConfig(), box(1, -100, 100), box(2, 100, 300))

	m, ok := w.Map(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), m.ID())

	for i := 0; i < 3; i++ {
		m, ok = w.Map(404)
		assert.False(t, ok)
		assert.Nil(t, m)
	}
	assert.Len(t, w.Maps(), 2)
}

func TestInitRejectsInvalidDefinitions(t *testing.T) {
	bad := MapDef{ID: 3, Min: [3]float32{5, 0, 5}, Max: [3]float32{1, 0, 1}}
	cases := map[string][]MapDef{
		"duplicate": {box(1, 0, 10), box(1, 10, 20)},
		"inverted":  {box(1, 0, 10), bad},
		"policy":    {{ID: 1, Min: [3]float32{0, 0, 0}, Max: [3]float32{1, 1, 1}, Policy: "teleport"}},
		"empty":     {},
	}
	for name, defs := range cases {
		t.Run(name, func(t *testing.T) {
			w := New(testConfig(), 1, StaticProvider(defs), event.NewBus(), zap.NewNop())
			require.Error(t, w.Init())
			assert.Empty(t, w.Maps())
			_, ok := w.Map(1)
			assert.False(t, ok)
		})
	}
}

type failingProvider struct{}

func (failingProvider) LoadMaps() ([]MapDef, error) { return nil, errors.New("disk on fire") }

func TestInitProviderError(t *testing.T) {
	w := New(testConfig(), 1, failingProvider{}, event.NewBus(), zap.NewNop())
	require.Error(t, w.Init())
	assert.Empty(t, w.Maps())
}

func TestMapStartsTickingAfterMapCreated(t *testing.T) {
	bus := event.NewBus()
	w := New(testConfig(), 1, StaticProvider{box(1, -100, 100)}, bus, zap.NewNop())
	require.NoError(t, w.Init())

	id, err := w.Entities().Spawn(entity.State{
		MapID:    1,
		Behavior: entity.Behavior{Steering: ai.Wander{Rotation: 0}, Speed: 1},
	})
	require.NoError(t, err)

	w.Update(time.Second)
	e, _ := w.Entities().Get(id)
	assert.Equal(t, mgl32.Vec3{}, e.Position, "map is not ready before MapCreated is delivered")

	bus.Dispatch()
	w.Update(time.Second)
	assert.InDelta(t, 1, e.Position[0], 1e-5)
}

func TestWanderEndToEnd(t *testing.T) {
	w, _ := newTestWorld(t, testConfig(), box(1, -100, 100))

	for _, theta := range []float32{0, 1.0, 2.5, 4.0} {
		id, err := w.Entities().Spawn(entity.State{
			MapID:       1,
			Orientation: theta,
			Behavior:    entity.Behavior{Name: "Wander(0)", Steering: ai.Wander{Rotation: 0}, Speed: 1},
		})
		require.NoError(t, err)

		w.Update(time.Second)

		e, ok := w.Entities().Get(id)
		require.True(t, ok)
		want := mgl32.Vec3{float32(math.Cos(float64(theta))), 0, float32(math.Sin(float64(theta)))}
		assert.True(t, e.Position.ApproxEqualThreshold(want, 1e-5), "theta=%v got %v", theta, e.Position)
		assert.InDelta(t, theta, e.Orientation, 1e-6)

		w.Entities().Remove(id)
	}
}

func TestPartitionInvariant(t *testing.T) {
	w, _ := newTestWorld(t, testConfig(), box(1, -100, 100), box(2, 100, 300))
	store := w.Entities()

	var ids []entity.ID
	for i := 0; i < 10; i++ {
		id, err := store.Spawn(entity.State{MapID: uint32(1 + i%2), Position: mgl32.Vec3{float32(i), 0, 0}})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	store.Remove(ids[3])
	store.Remove(ids[4])

	store.Each(func(e *entity.Entity) {
		owners := 0
		for _, m := range w.Maps() {
			if m.Contains(e.ID) {
				owners++
				assert.Equal(t, m.ID(), e.MapID)
			}
		}
		assert.Equal(t, 1, owners, "entity %d", e.ID)
	})
	for _, m := range w.Maps() {
		assert.False(t, m.Contains(ids[3]))
		assert.False(t, m.Contains(ids[4]))
	}
}

func TestAdvanceKeepsInsertionOrder(t *testing.T) {
	w, bus := newTestWorld(t, testConfig(), box(1, -100, 100))
	store := w.Entities()

	var ids []entity.ID
	for i := 0; i < 5; i++ {
		id, err := store.Spawn(entity.State{MapID: 1, Behavior: entity.Behavior{Steering: ai.Wander{}, Speed: 1}})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	bus.Dispatch()

	var order []entity.ID
	event.Subscribe(bus, func(ev event.EntityUpdated) { order = append(order, entity.ID(ev.EntityID)) })
	w.Update(100 * time.Millisecond)
	bus.Dispatch()

	assert.Equal(t, ids, order)
	m, _ := w.Map(1)
	assert.Equal(t, ids, m.Entities())
}

func TestClampPolicy(t *testing.T) {
	w, _ := newTestWorld(t, testConfig(), box(1, -10, 10))
	id, err := w.Entities().Spawn(entity.State{
		MapID:    1,
		Position: mgl32.Vec3{9, 0, 0},
		Behavior: entity.Behavior{Steering: ai.Wander{}, Speed: 5},
	})
	require.NoError(t, err)

	w.Update(time.Second)
	e, _ := w.Entities().Get(id)
	assert.Equal(t, float32(10), e.Position[0])
	assert.Equal(t, uint32(1), e.MapID)
}

func TestHandoffPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultPolicy = "handoff"
	w, _ := newTestWorld(t, cfg, box(1, -10, 10), box(2, 10, 30))
	store := w.Entities()

	id, err := store.Spawn(entity.State{
		MapID:    1,
		Position: mgl32.Vec3{9, 0, 0},
		Behavior: entity.Behavior{Steering: ai.Wander{}, Speed: 5},
	})
	require.NoError(t, err)

	w.Update(time.Second)

	e, _ := store.Get(id)
	assert.Equal(t, uint32(2), e.MapID)
	assert.InDelta(t, 14, e.Position[0], 1e-5)
	m1, _ := w.Map(1)
	m2, _ := w.Map(2)
	assert.False(t, m1.Contains(id))
	assert.True(t, m2.Contains(id))

	// map 2 is last in order; handing off east of it has nowhere to go, so it clamps
	w.Update(4 * time.Second)
	assert.Equal(t, float32(30), e.Position[0])
	assert.Equal(t, uint32(2), e.MapID)
}

func TestHandedOffEntityAdvancesOncePerTick(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultPolicy = "handoff"
	// map 2 comes after map 1, so a naive walk would advance the entity twice
	w, _ := newTestWorld(t, cfg, box(1, -10, 10), box(2, 10, 30))
	id, _ := w.Entities().Spawn(entity.State{
		MapID:    1,
		Position: mgl32.Vec3{9.5, 0, 0},
		Behavior: entity.Behavior{Steering: ai.Wander{}, Speed: 1},
	})
	w.Update(time.Second)
	e, _ := w.Entities().Get(id)
	assert.InDelta(t, 10.5, e.Position[0], 1e-5)
}

type panicSteer struct{}

func (panicSteer) Execute(ai.Actor, float32, *rand.Rand) (ai.MoveVector, error) { panic("boom") }

func TestSteeringFailureLeavesEntityUntouched(t *testing.T) {
	w, _ := newTestWorld(t, testConfig(), box(1, -10, 10))
	id, _ := w.Entities().Spawn(entity.State{
		MapID:       1,
		Position:    mgl32.Vec3{1, 2, 3},
		Orientation: 0.5,
		Behavior:    entity.Behavior{Steering: panicSteer{}, Speed: 1},
	})
	w.Update(time.Second)
	e, _ := w.Entities().Get(id)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, e.Position)
	assert.Equal(t, float32(0.5), e.Orientation)
}

func TestShutdownDetachesEverything(t *testing.T) {
	w, _ := newTestWorld(t, testConfig(), box(1, -10, 10))
	for i := 0; i < 3; i++ {
		_, err := w.Entities().Spawn(entity.State{MapID: 1})
		require.NoError(t, err)
	}
	m, _ := w.Map(1)
	w.Shutdown()
	assert.Equal(t, 0, w.Entities().Len())
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, w.Maps())
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0, NormalizeAngle(0), 1e-6)
	assert.InDelta(t, math.Pi, NormalizeAngle(-math.Pi), 1e-5)
	assert.InDelta(t, 0.5, NormalizeAngle(2*math.Pi+0.5), 1e-5)
	assert.Less(t, NormalizeAngle(2*math.Pi-1e-9), float32(2*math.Pi))
}

func TestParseMapList(t *testing.T) {
	defs, err := ParseMapList([]byte(`
maps:
  - id: 1
    name: meadow
    min: [-64, 0, -64]
    max: [64, 32, 64]
    spawns:
      - name: sheep
        behavior: Wander(0.3)
        speed: 1.5
        count: 4
        health: 10
  - id: 2
    name: cave
    min: [64, 0, -64]
    max: [128, 32, 64]
    policy: handoff
`))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "meadow", defs[0].Name)
	assert.Equal(t, mgl32.Vec3{64, 32, 64}, defs[0].Bounds().Max)
	require.Len(t, defs[0].Spawns, 1)
	assert.Equal(t, 4, defs[0].Spawns[0].Count)
	assert.Equal(t, "handoff", defs[1].Policy)
}
