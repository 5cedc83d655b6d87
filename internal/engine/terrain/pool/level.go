package pool

import (
	"fmt"

	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// LevelPool partitions its storage by level of detail. Each level owns a
// region of slotsPerLevel blocks sized for that level.
type LevelPool struct {
	store
	sizes []int // vertices per block, by level
	bases []int // first vertex of each level's region
	lists []freeList
	total int
}

// NewLevelPool creates a pool with slotsPerLevel blocks for every entry of
// verticesPerLevel.
func NewLevelPool(verticesPerLevel []int, slotsPerLevel int) (*LevelPool, error) {
	if len(verticesPerLevel) == 0 || slotsPerLevel <= 0 {
		return nil, fmt.Errorf("level pool: %d levels x %d slots: sizes must be positive", len(verticesPerLevel), slotsPerLevel)
	}
	p := &LevelPool{
		sizes: append([]int(nil), verticesPerLevel...),
		bases: make([]int, len(verticesPerLevel)),
		lists: make([]freeList, len(verticesPerLevel)),
	}
	for level, size := range verticesPerLevel {
		if size <= 0 {
			return nil, fmt.Errorf("level pool: level %d has %d vertices per block", level, size)
		}
		p.bases[level] = p.total
		p.lists[level] = newFreeList(slotsPerLevel)
		p.total += size * slotsPerLevel
	}
	return p, nil
}

// Levels returns the number of levels.
func (p *LevelPool) Levels() int {
	return len(p.sizes)
}

// Capacity returns the total vertex capacity.
func (p *LevelPool) Capacity() int {
	return p.total
}

// Allocate pops a free block of the given level in O(1).
func (p *LevelPool) Allocate(level int) (Handle, error) {
	if level < 0 || level >= len(p.lists) {
		return Handle{}, fmt.Errorf("allocate level %d of %d: %w", level, len(p.lists), ErrExhausted)
	}
	slot, ok := p.lists[level].pop()
	if !ok {
		return Handle{}, ErrExhausted
	}
	return Handle{
		Offset: p.bases[level] + int(slot)*p.sizes[level],
		Count:  p.sizes[level],
		level:  level,
		slot:   slot,
	}, nil
}

// Release pushes a block back onto its level's free list in O(1).
func (p *LevelPool) Release(h Handle) error {
	if !h.Valid() || h.level < 0 || h.level >= len(p.lists) || h.Count != p.sizes[h.level] ||
		!p.lists[h.level].push(h.slot) {
		return fmt.Errorf("release level %d block at %d: %w", h.level, h.Offset, ErrNotAllocated)
	}
	return nil
}

// Write copies vertices into an allocated block.
func (p *LevelPool) Write(h Handle, vertices []surface.Vertex) error {
	inUse := h.Valid() && h.level >= 0 && h.level < len(p.lists) &&
		int(h.slot) < len(p.lists[h.level].inUse) && p.lists[h.level].inUse[h.slot]
	return p.write(h, inUse, vertices)
}

// FreeAt returns the number of free blocks at level.
func (p *LevelPool) FreeAt(level int) int {
	if level < 0 || level >= len(p.lists) {
		return 0
	}
	return p.lists[level].free
}

// Stats reports occupancy across all levels.
func (p *LevelPool) Stats() Stats {
	s := Stats{Capacity: p.total}
	for level := range p.lists {
		blocks := len(p.lists[level].inUse)
		s.Blocks += blocks
		s.FreeBlocks += p.lists[level].free
		s.Used += (blocks - p.lists[level].free) * p.sizes[level]
	}
	return s
}
