package ai

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Factory builds a strategy from the text between the parentheses of a
// behavior string ("" when there are none).
type Factory func(param string) (Steering, error)

// Registry resolves behavior strings such as "Wander", "Wander(0.5)" or
// "Seek(10,0,5)" to strategies. It is filled at startup and read-only after.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in strategies. wanderRate is
// the turn rate used by a bare "Wander", taken as given: zero never turns and
// a negative rate fails to resolve. scripts may be nil, in which case
// "Lua(...)" behaviors fail to resolve.
func NewRegistry(shape Perturbation, wanderRate float32, scripts Scripter) *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.factories["Wander"] = func(param string) (Steering, error) {
		if param != "" {
			return NewWander(param, shape)
		}
		if err := checkRate(float64(wanderRate)); err != nil {
			return nil, fmt.Errorf("wander rotation %v: %w", wanderRate, err)
		}
		return Wander{Rotation: wanderRate, Shape: shape}, nil
	}
	r.factories["Idle"] = func(string) (Steering, error) { return Idle{}, nil }
	r.factories["Input"] = func(string) (Steering, error) { return Input{}, nil }
	r.factories["Seek"] = func(param string) (Steering, error) {
		v, err := parseVec3(param)
		if err != nil {
			return nil, fmt.Errorf("seek: %w", err)
		}
		return Seek{Target: v}, nil
	}
	r.factories["Flee"] = func(param string) (Steering, error) {
		v, err := parseVec3(param)
		if err != nil {
			return nil, fmt.Errorf("flee: %w", err)
		}
		return Seek{Target: v, Flee: true}, nil
	}
	r.factories["Lua"] = func(param string) (Steering, error) {
		if scripts == nil {
			return nil, fmt.Errorf("lua %q: %w: scripting disabled", param, ErrMissingState)
		}
		if !scripts.Has(param) {
			return nil, fmt.Errorf("lua function %q not defined", param)
		}
		return Lua{Engine: scripts, Fn: param}, nil
	}
	return r
}

// Register adds or replaces a named factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists the registered behavior names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve parses a behavior string into a strategy.
func (r *Registry) Resolve(behavior string) (Steering, error) {
	name, param, err := splitBehavior(behavior)
	if err != nil {
		return nil, err
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown behavior %q", name)
	}
	return f(param)
}

func splitBehavior(s string) (name, param string, err error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if s == "" {
			return "", "", fmt.Errorf("empty behavior")
		}
		return s, "", nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", "", fmt.Errorf("behavior %q: missing ')'", s)
	}
	name = strings.TrimSpace(s[:open])
	if name == "" {
		return "", "", fmt.Errorf("behavior %q: missing name", s)
	}
	return name, strings.TrimSpace(s[open+1 : len(s)-1]), nil
}

func parseVec3(s string) (mgl32.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl32.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v mgl32.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return mgl32.Vec3{}, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
