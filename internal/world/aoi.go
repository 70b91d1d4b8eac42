package world

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/worldsrv/server/internal/entity"
)

// ChunkGrid buckets a map's entities into square chunks on the XZ plane.
// A 3x3 neighbourhood of chunks is the area of interest for updates.
// Accessed only from the game loop goroutine.
type ChunkGrid struct {
	size  float32
	cells map[chunkKey]map[entity.ID]struct{}
	where map[entity.ID]chunkKey
}

type chunkKey struct {
	cx int32
	cz int32
}

func NewChunkGrid(size int) *ChunkGrid {
	if size <= 0 {
		size = 16
	}
	return &ChunkGrid{
		size:  float32(size),
		cells: make(map[chunkKey]map[entity.ID]struct{}),
		where: make(map[entity.ID]chunkKey),
	}
}

func (g *ChunkGrid) key(p mgl32.Vec3) chunkKey {
	return chunkKey{
		cx: int32(math.Floor(float64(p[0] / g.size))),
		cz: int32(math.Floor(float64(p[2] / g.size))),
	}
}

// Place puts id into the chunk holding p, moving it if it was elsewhere.
func (g *ChunkGrid) Place(id entity.ID, p mgl32.Vec3) {
	k := g.key(p)
	if old, ok := g.where[id]; ok {
		if old == k {
			return
		}
		g.drop(id, old)
	}
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[entity.ID]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
	g.where[id] = k
}

// Remove takes id out of the grid.
func (g *ChunkGrid) Remove(id entity.ID) {
	if k, ok := g.where[id]; ok {
		g.drop(id, k)
	}
}

func (g *ChunkGrid) drop(id entity.ID, k chunkKey) {
	delete(g.where, id)
	cell := g.cells[k]
	if cell == nil {
		return
	}
	delete(cell, id)
	if len(cell) == 0 {
		delete(g.cells, k)
	}
}

// Nearby returns the ids in the 3x3 chunks around p, sorted.
func (g *ChunkGrid) Nearby(p mgl32.Vec3) []entity.ID {
	c := g.key(p)
	var result []entity.ID
	for dx := int32(-1); dx <= 1; dx++ {
		for dz := int32(-1); dz <= 1; dz++ {
			for id := range g.cells[chunkKey{cx: c.cx + dx, cz: c.cz + dz}] {
				result = append(result, id)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (g *ChunkGrid) Len() int { return len(g.where) }
