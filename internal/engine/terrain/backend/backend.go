// Package backend defines what the terrain core needs from a renderer and
// provides Recorder, an in-memory implementation used headless and in tests.
package backend

import (
	"errors"

	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// ErrOutOfRange is returned when a write or index falls outside a buffer.
var ErrOutOfRange = errors.New("backend: out of range")

// VertexStore is one fixed-capacity vertex buffer shared by every patch.
type VertexStore interface {
	Capacity() int
	// Write copies vertices into the store starting at offset.
	Write(offset int, vertices []surface.Vertex) error
	Destroy()
}

// IndexBuffer holds one patch's triangle-list indices. Indices address the
// VertexStore directly.
type IndexBuffer interface {
	Count() int
	Replace(indices []uint32) error
	Destroy()
}

// Backend creates GPU resources and issues draws.
type Backend interface {
	CreateVertexStore(capacity int) (VertexStore, error)
	CreateIndexBuffer(indices []uint32) (IndexBuffer, error)
	// Draw issues one indexed triangle-list draw against the vertex store.
	Draw(ib IndexBuffer)
}
