package pool

import (
	"fmt"

	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// BlockPool is a flat free list of equal blocks, used when every patch has
// the same vertex count regardless of depth.
type BlockPool struct {
	store
	blockSize int
	free      freeList
}

// NewBlockPool creates a pool of blocks × blockSize vertices.
func NewBlockPool(blockSize, blocks int) (*BlockPool, error) {
	if blockSize <= 0 || blocks <= 0 {
		return nil, fmt.Errorf("block pool %d x %d: sizes must be positive", blocks, blockSize)
	}
	return &BlockPool{
		blockSize: blockSize,
		free:      newFreeList(blocks),
	}, nil
}

// Capacity returns the total vertex capacity.
func (p *BlockPool) Capacity() int {
	return p.blockSize * len(p.free.inUse)
}

// BlockSize returns the vertex count of each block.
func (p *BlockPool) BlockSize() int {
	return p.blockSize
}

// Allocate pops a free block in O(1).
func (p *BlockPool) Allocate() (Handle, error) {
	slot, ok := p.free.pop()
	if !ok {
		return Handle{}, ErrExhausted
	}
	return Handle{
		Offset: int(slot) * p.blockSize,
		Count:  p.blockSize,
		slot:   slot,
	}, nil
}

// Release pushes a block back in O(1).
func (p *BlockPool) Release(h Handle) error {
	if !h.Valid() || h.Count != p.blockSize || !p.free.push(h.slot) {
		return fmt.Errorf("release block at %d: %w", h.Offset, ErrNotAllocated)
	}
	return nil
}

// Write copies vertices into an allocated block.
func (p *BlockPool) Write(h Handle, vertices []surface.Vertex) error {
	inUse := h.Valid() && int(h.slot) < len(p.free.inUse) && p.free.inUse[h.slot]
	return p.write(h, inUse, vertices)
}

// Stats reports occupancy.
func (p *BlockPool) Stats() Stats {
	blocks := len(p.free.inUse)
	return Stats{
		Capacity:   p.Capacity(),
		Used:       (blocks - p.free.free) * p.blockSize,
		Blocks:     blocks,
		FreeBlocks: p.free.free,
	}
}
