package entity

// ID encodes a 32-bit index in the lower bits and a 32-bit generation in the
// upper bits. The generation increments when an id is released, so a stale
// ID never compares equal to the one that later reuses its slot.
type ID uint64

func NewID(index uint32, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32      { return uint32(id) }
func (id ID) Generation() uint32 { return uint32(id >> 32) }
func (id ID) IsZero() bool       { return id == 0 }

// idPool hands out generational ids with a free list. Generations start at
// 1 so the zero ID is never issued.
type idPool struct {
	generations []uint32
	freeList    []uint32
}

func newIDPool() *idPool {
	return &idPool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *idPool) alloc() ID {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return NewID(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	return NewID(idx, 1)
}

func (p *idPool) alive(id ID) bool {
	idx := id.Index()
	if int(idx) >= len(p.generations) {
		return false
	}
	return p.generations[idx] == id.Generation()
}

func (p *idPool) release(id ID) {
	if !p.alive(id) {
		return // stale
	}
	idx := id.Index()
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.freeList = append(p.freeList, idx)
}
