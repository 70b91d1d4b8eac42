package ai

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldsrv/server/internal/scripting"
)

type fakeScripts struct {
	fns map[string]scripting.SteerResult
	err error
}

func (f fakeScripts) Has(fn string) bool {
	_, ok := f.fns[fn]
	return ok
}

func (f fakeScripts) Steer(fn string, _ scripting.SteerContext) (scripting.SteerResult, error) {
	return f.fns[fn], f.err
}

func TestResolveBuiltins(t *testing.T) {
	r := NewRegistry(PerturbUniform, DefaultWanderRotation, nil)

	s, err := r.Resolve("Wander")
	require.NoError(t, err)
	assert.Equal(t, Wander{Rotation: DefaultWanderRotation, Shape: PerturbUniform}, s)

	s, err = r.Resolve(" Wander( 0.5 ) ")
	require.NoError(t, err)
	assert.Equal(t, Wander{Rotation: 0.5, Shape: PerturbUniform}, s)

	s, err = r.Resolve("Seek(1, 2, 3)")
	require.NoError(t, err)
	assert.Equal(t, Seek{Target: mgl32.Vec3{1, 2, 3}}, s)

	s, err = r.Resolve("Flee(1,2,3)")
	require.NoError(t, err)
	assert.Equal(t, Seek{Target: mgl32.Vec3{1, 2, 3}, Flee: true}, s)

	s, err = r.Resolve("Idle")
	require.NoError(t, err)
	assert.Equal(t, Idle{}, s)
}

func TestResolveConfiguredWanderRate(t *testing.T) {
	r := NewRegistry(PerturbBinomial, 0.3, nil)
	s, err := r.Resolve("Wander")
	require.NoError(t, err)
	assert.Equal(t, float32(0.3), s.(Wander).Rotation)
}

func TestResolveWanderRateBounds(t *testing.T) {
	still := NewRegistry(PerturbPositive, 0, nil)
	s, err := still.Resolve("Wander")
	require.NoError(t, err)
	assert.Equal(t, Wander{Rotation: 0, Shape: PerturbPositive}, s)
	s, err = still.Resolve("Wander(0)")
	require.NoError(t, err)
	assert.Zero(t, s.(Wander).Rotation)

	_, err = still.Resolve("Wander(-0.5)")
	require.Error(t, err)

	negative := NewRegistry(PerturbPositive, -0.5, nil)
	_, err = negative.Resolve("Wander")
	require.Error(t, err)
	_, err = negative.Resolve("Wander(0.5)")
	require.NoError(t, err, "an explicit rate does not use the configured one")
}

func TestResolveErrors(t *testing.T) {
	r := NewRegistry(PerturbBinomial, 0, nil)
	for _, b := range []string{"", "Dance", "Wander(0.5", "(1)", "Seek(1,2)", "Lua(x)"} {
		_, err := r.Resolve(b)
		assert.Error(t, err, b)
	}
}

func TestResolveLua(t *testing.T) {
	scripts := fakeScripts{fns: map[string]scripting.SteerResult{
		"circle": {X: 1, Y: 0, Z: 0, Rotation: 0.5},
	}}
	r := NewRegistry(PerturbBinomial, 0, scripts)

	_, err := r.Resolve("Lua(square)")
	require.Error(t, err)

	s, err := r.Resolve("Lua(circle)")
	require.NoError(t, err)
	mv, err := Compute(s, Actor{}, 1, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, MoveVector{Linear: mgl32.Vec3{1, 0, 0}, Rotation: 0.5}, mv)
}

func TestLuaErrorYieldsZero(t *testing.T) {
	s := Lua{Engine: fakeScripts{err: errors.New("runtime error")}, Fn: "x"}
	mv, err := Compute(s, Actor{}, 1, nil)
	require.Error(t, err)
	assert.True(t, mv.IsZero())
}

func TestRegisterCustomFactory(t *testing.T) {
	r := NewRegistry(PerturbBinomial, 0, nil)
	r.Register("Still", func(string) (Steering, error) { return Idle{}, nil })
	assert.Contains(t, r.Names(), "Still")
	_, err := r.Resolve("Still")
	require.NoError(t, err)
}
