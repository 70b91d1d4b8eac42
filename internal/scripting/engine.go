package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for scripted steering.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from scriptsDir and its
// "ai" subdirectory. A missing directory is not an error.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("TAU", lua.LNumber(2*math.Pi))

	e := &Engine{vm: vm, log: log}

	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "ai")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source in the engine's global scope.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

// Has reports whether a global Lua function named fn exists.
func (e *Engine) Has(fn string) bool {
	_, ok := e.vm.GetGlobal(fn).(*lua.LFunction)
	return ok
}

// SteerContext is the actor snapshot handed to a Lua steering function.
type SteerContext struct {
	EntityID    uint64
	X, Y, Z     float64
	Orientation float64
	Speed       float64
	Random      float64 // one draw from the map's seeded source, in [0,1)
}

// SteerResult is what a steering function returns: a linear velocity and an
// angular rate.
type SteerResult struct {
	X, Y, Z  float64
	Rotation float64
}

// Steer calls Lua fn(ctx) which must return four numbers (x, y, z, rotation).
func (e *Engine) Steer(fn string, in SteerContext) (SteerResult, error) {
	lfn, ok := e.vm.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return SteerResult{}, fmt.Errorf("lua function %q not found", fn)
	}

	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(in.EntityID))
	t.RawSetString("x", lua.LNumber(in.X))
	t.RawSetString("y", lua.LNumber(in.Y))
	t.RawSetString("z", lua.LNumber(in.Z))
	t.RawSetString("orientation", lua.LNumber(in.Orientation))
	t.RawSetString("speed", lua.LNumber(in.Speed))
	t.RawSetString("random", lua.LNumber(in.Random))

	if err := e.vm.CallByParam(lua.P{
		Fn:      lfn,
		NRet:    4,
		Protect: true,
	}, t); err != nil {
		return SteerResult{}, fmt.Errorf("lua %s: %w", fn, err)
	}

	var out [4]float64
	for i := range out {
		v := e.vm.Get(-4 + i)
		n, ok := v.(lua.LNumber)
		if !ok && v != lua.LNil {
			e.vm.Pop(4)
			return SteerResult{}, fmt.Errorf("lua %s: result %d is %s, want number", fn, i+1, v.Type())
		}
		out[i] = float64(n)
	}
	e.vm.Pop(4)

	return SteerResult{X: out[0], Y: out[1], Z: out[2], Rotation: out[3]}, nil
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
