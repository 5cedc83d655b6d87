package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/planetlod/internal/engine/terrain/backend"
	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

var _ backend.Backend = (*Renderer)(nil)

// vertexStore is a single VBO sized for the whole pool, bound to one VAO.
type vertexStore struct {
	vao, vbo uint32
	capacity int
}

// vertexAttribs describes surface.Vertex: location 0 position, location 1 normal.
var vertexAttribs = []struct {
	location uint32
	size     int32
	offset   uintptr
}{
	{0, 3, unsafe.Offsetof(surface.Vertex{}.Position)},
	{1, 3, unsafe.Offsetof(surface.Vertex{}.Normal)},
}

// CreateVertexStore allocates the shared vertex buffer.
func (r *Renderer) CreateVertexStore(capacity int) (backend.VertexStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("vertex store capacity %d: %w", capacity, backend.ErrOutOfRange)
	}
	s := &vertexStore{capacity: capacity}

	gl.GenVertexArrays(1, &s.vao)
	gl.GenBuffers(1, &s.vbo)

	gl.BindVertexArray(s.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, capacity*surface.VertexSize, nil, gl.DYNAMIC_DRAW)

	for _, a := range vertexAttribs {
		gl.VertexAttribPointerWithOffset(a.location, a.size, gl.FLOAT, false, surface.VertexSize, a.offset)
		gl.EnableVertexAttribArray(a.location)
	}
	gl.BindVertexArray(0)

	r.store = s
	r.log.Info("vertex store created",
		zap.Int("vertices", capacity),
		zap.Int("bytes", capacity*surface.VertexSize),
	)
	return s, nil
}

func (s *vertexStore) Capacity() int { return s.capacity }

func (s *vertexStore) Write(offset int, vertices []surface.Vertex) error {
	if offset < 0 || offset+len(vertices) > s.capacity {
		return fmt.Errorf("write %d vertices at %d into %d: %w", len(vertices), offset, s.capacity, backend.ErrOutOfRange)
	}
	if len(vertices) == 0 {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, offset*surface.VertexSize, len(vertices)*surface.VertexSize, gl.Ptr(vertices))
	return nil
}

func (s *vertexStore) Destroy() {
	if s.vbo != 0 {
		gl.DeleteBuffers(1, &s.vbo)
		s.vbo = 0
	}
	if s.vao != 0 {
		gl.DeleteVertexArrays(1, &s.vao)
		s.vao = 0
	}
}

// indexBuffer is one patch's element buffer.
type indexBuffer struct {
	ebo      uint32
	count    int
	capacity int
}

// CreateIndexBuffer uploads indices into a new element buffer.
func (r *Renderer) CreateIndexBuffer(indices []uint32) (backend.IndexBuffer, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty index buffer: %w", backend.ErrOutOfRange)
	}
	b := &indexBuffer{}
	gl.GenBuffers(1, &b.ebo)
	b.upload(indices)
	return b, nil
}

func (b *indexBuffer) upload(indices []uint32) {
	size := len(indices) * 4
	// Element array binding is VAO state; bind with no VAO to keep the
	// store's VAO untouched.
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	if len(indices) > b.capacity {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, size, gl.Ptr(indices), gl.STATIC_DRAW)
		b.capacity = len(indices)
	} else {
		gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, 0, size, gl.Ptr(indices))
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
	b.count = len(indices)
}

func (b *indexBuffer) Count() int { return b.count }

func (b *indexBuffer) Replace(indices []uint32) error {
	if len(indices) == 0 {
		return fmt.Errorf("empty index buffer: %w", backend.ErrOutOfRange)
	}
	b.upload(indices)
	return nil
}

func (b *indexBuffer) Destroy() {
	if b.ebo != 0 {
		gl.DeleteBuffers(1, &b.ebo)
		b.ebo = 0
	}
	b.count = 0
}

// Draw issues one indexed draw against the vertex store. Begin must have
// bound the store's VAO.
func (r *Renderer) Draw(ib backend.IndexBuffer) {
	b, ok := ib.(*indexBuffer)
	if !ok || b.ebo == 0 || b.count == 0 || r.store == nil {
		return
	}
	gl.BindVertexArray(r.store.vao)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	gl.DrawElements(gl.TRIANGLES, int32(b.count), gl.UNSIGNED_INT, nil)
	r.drawCalls++
	r.indices += b.count
}
