package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ai"), 0o755))
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	e, err := NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestSteerReturnsFourNumbers(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"ai/drift.lua": `
function drift(ctx)
  return ctx.speed, 0, -ctx.speed, ctx.random
end
`,
	})

	require.True(t, e.Has("drift"))
	res, err := e.Steer("drift", SteerContext{Speed: 2, Random: 0.5})
	require.NoError(t, err)
	assert.Equal(t, SteerResult{X: 2, Y: 0, Z: -2, Rotation: 0.5}, res)
}

func TestSteerMissingFunction(t *testing.T) {
	e := newTestEngine(t, nil)
	assert.False(t, e.Has("nope"))
	_, err := e.Steer("nope", SteerContext{})
	require.Error(t, err)
}

func TestSteerRuntimeErrorIsReturned(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"boom.lua": `function boom(ctx) error("kaboom") end`,
	})
	_, err := e.Steer("boom", SteerContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	// the VM stays usable after a failed call
	require.NoError(t, e.LoadString(`function ok(ctx) return 1, 2, 3, 4 end`))
	res, err := e.Steer("ok", SteerContext{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Rotation)
}

func TestSteerRejectsNonNumericResult(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"bad.lua": `function bad(ctx) return "x", 0, 0, 0 end`,
	})
	_, err := e.Steer("bad", SteerContext{})
	require.Error(t, err)
}

func TestNewEngineFailsOnSyntaxError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.lua"), []byte("function ("), 0o644))
	_, err := NewEngine(dir, zap.NewNop())
	require.Error(t, err)
}
