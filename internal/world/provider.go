package world

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// MapDef describes one map as loaded from maps.yaml.
type MapDef struct {
	ID     uint32       `yaml:"id"`
	Name   string       `yaml:"name"`
	Min    [3]float32   `yaml:"min"`
	Max    [3]float32   `yaml:"max"`
	Policy string       `yaml:"policy"` // empty = world default
	Spawns []SpawnGroup `yaml:"spawns"`
}

func (d MapDef) Bounds() Bounds {
	return Bounds{Min: mgl32.Vec3(d.Min), Max: mgl32.Vec3(d.Max)}
}

// SpawnGroup is a population of identical NPCs kept at Count.
type SpawnGroup struct {
	Name     string  `yaml:"name"`
	Behavior string  `yaml:"behavior"`
	Speed    float32 `yaml:"speed"`
	Count    int     `yaml:"count"`
	Health   float64 `yaml:"health"`
	Strength float64 `yaml:"strength"`
}

// Provider supplies map definitions at world init.
type Provider interface {
	LoadMaps() ([]MapDef, error)
}

// YAMLProvider reads map definitions from a yaml file.
type YAMLProvider struct {
	Path string
}

type mapListFile struct {
	Maps []MapDef `yaml:"maps"`
}

func (p YAMLProvider) LoadMaps() ([]MapDef, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", p.Path, err)
	}
	return ParseMapList(raw)
}

// ParseMapList decodes a maps.yaml document.
func ParseMapList(raw []byte) ([]MapDef, error) {
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}
	return file.Maps, nil
}

// StaticProvider serves a fixed list, for tests and embedded setups.
type StaticProvider []MapDef

func (p StaticProvider) LoadMaps() ([]MapDef, error) {
	return p, nil
}
