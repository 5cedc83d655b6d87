// Package pool manages the fixed-capacity vertex storage shared by all
// terrain patches. Two policies exist: BlockPool hands out same-sized blocks
// from one free list, LevelPool keeps one free list per level of detail with
// blocks sized for that level. Neither knows about patches.
package pool

import (
	"errors"
	"fmt"

	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

var (
	// ErrExhausted is returned when no free block is left. It is recoverable:
	// callers defer the work until blocks are released.
	ErrExhausted = errors.New("pool: exhausted")

	// ErrNotAllocated is returned when releasing or writing a block that is not in use.
	ErrNotAllocated = errors.New("pool: block not allocated")

	// ErrTooLarge is returned when writing more vertices than a block holds.
	ErrTooLarge = errors.New("pool: write exceeds block")
)

// Handle names one allocated block: a contiguous vertex range.
type Handle struct {
	Offset int // first vertex in the store
	Count  int // vertices in the block
	level  int
	slot   int32
}

// Valid reports whether h refers to a block.
func (h Handle) Valid() bool {
	return h.Count > 0
}

// Level returns the level of detail the block was allocated for.
func (h Handle) Level() int {
	return h.level
}

// Stats summarises pool occupancy.
type Stats struct {
	Capacity   int // vertices
	Used       int // vertices in allocated blocks
	Blocks     int
	FreeBlocks int
}

// freeList is an intrusive singly linked list over slots [0, n).
// Pop and push both work at the front.
type freeList struct {
	next  []int32
	inUse []bool
	head  int32
	free  int
}

func newFreeList(n int) freeList {
	fl := freeList{
		next:  make([]int32, n),
		inUse: make([]bool, n),
		free:  n,
	}
	for i := range fl.next {
		fl.next[i] = int32(i + 1)
	}
	if n > 0 {
		fl.next[n-1] = -1
		fl.head = 0
	} else {
		fl.head = -1
	}
	return fl
}

func (fl *freeList) pop() (int32, bool) {
	if fl.head < 0 {
		return 0, false
	}
	slot := fl.head
	fl.head = fl.next[slot]
	fl.next[slot] = -1
	fl.inUse[slot] = true
	fl.free--
	return slot, true
}

func (fl *freeList) push(slot int32) bool {
	if slot < 0 || int(slot) >= len(fl.inUse) || !fl.inUse[slot] {
		return false
	}
	fl.inUse[slot] = false
	fl.next[slot] = fl.head
	fl.head = slot
	fl.free++
	return true
}

// store forwards block writes to an optional backend vertex store.
type store struct {
	vs backend.VertexStore
}

// Attach sets the vertex store that Write forwards to. A pool without a store
// only tracks allocation.
func (s *store) Attach(vs backend.VertexStore) {
	s.vs = vs
}

func (s *store) write(h Handle, inUse bool, vertices []surface.Vertex) error {
	if !inUse {
		return fmt.Errorf("write to block at %d: %w", h.Offset, ErrNotAllocated)
	}
	if len(vertices) > h.Count {
		return fmt.Errorf("write %d vertices into block of %d: %w", len(vertices), h.Count, ErrTooLarge)
	}
	if s.vs == nil {
		return nil
	}
	return s.vs.Write(h.Offset, vertices)
}
