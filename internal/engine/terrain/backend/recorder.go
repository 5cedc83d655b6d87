package backend

import (
	"fmt"

	"github.com/Faultbox/planetlod/internal/engine/terrain/surface"
)

// Recorder keeps vertex and index data in memory and records every draw of
// the current frame.
type Recorder struct {
	store *recordStore
	live  map[*recordBuffer]struct{}
	drawn []*recordBuffer
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{live: make(map[*recordBuffer]struct{})}
}

type recordStore struct {
	vertices []surface.Vertex
	writes   int
}

func (s *recordStore) Capacity() int { return len(s.vertices) }

func (s *recordStore) Write(offset int, vertices []surface.Vertex) error {
	if offset < 0 || offset+len(vertices) > len(s.vertices) {
		return fmt.Errorf("write %d vertices at %d into %d: %w", len(vertices), offset, len(s.vertices), ErrOutOfRange)
	}
	copy(s.vertices[offset:], vertices)
	s.writes++
	return nil
}

func (s *recordStore) Destroy() { s.vertices = nil }

type recordBuffer struct {
	owner   *Recorder
	indices []uint32
}

func (b *recordBuffer) Count() int { return len(b.indices) }

func (b *recordBuffer) Replace(indices []uint32) error {
	if err := b.owner.check(indices); err != nil {
		return err
	}
	b.indices = append(b.indices[:0], indices...)
	return nil
}

func (b *recordBuffer) Destroy() {
	delete(b.owner.live, b)
	b.indices = nil
}

// CreateVertexStore allocates the backing vertex array.
func (r *Recorder) CreateVertexStore(capacity int) (VertexStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("vertex store capacity %d: %w", capacity, ErrOutOfRange)
	}
	r.store = &recordStore{vertices: make([]surface.Vertex, capacity)}
	return r.store, nil
}

// CreateIndexBuffer copies indices into a new buffer.
func (r *Recorder) CreateIndexBuffer(indices []uint32) (IndexBuffer, error) {
	if err := r.check(indices); err != nil {
		return nil, err
	}
	b := &recordBuffer{owner: r, indices: append([]uint32(nil), indices...)}
	r.live[b] = struct{}{}
	return b, nil
}

func (r *Recorder) check(indices []uint32) error {
	if r.store == nil {
		return nil
	}
	for _, idx := range indices {
		if int(idx) >= len(r.store.vertices) {
			return fmt.Errorf("index %d beyond store of %d: %w", idx, len(r.store.vertices), ErrOutOfRange)
		}
	}
	return nil
}

// Draw records ib for the current frame.
func (r *Recorder) Draw(ib IndexBuffer) {
	if b, ok := ib.(*recordBuffer); ok {
		r.drawn = append(r.drawn, b)
	}
}

// BeginFrame forgets the draws of the previous frame.
func (r *Recorder) BeginFrame() {
	r.drawn = r.drawn[:0]
}

// DrawCalls returns the number of draws recorded since BeginFrame.
func (r *Recorder) DrawCalls() int {
	return len(r.drawn)
}

// LiveBuffers returns the number of index buffers not yet destroyed.
func (r *Recorder) LiveBuffers() int {
	return len(r.live)
}

// Triangle is a drawn triangle resolved to positions.
type Triangle [3][3]float32

// Triangles resolves every triangle drawn since BeginFrame. When limit is
// non-nil it is called per draw and only the first limit(count) indices of
// that draw are used.
func (r *Recorder) Triangles(limit func(count int) int) []Triangle {
	var tris []Triangle
	if r.store == nil {
		return nil
	}
	for _, b := range r.drawn {
		indices := b.indices
		if limit != nil {
			indices = indices[:limit(len(indices))]
		}
		for i := 0; i+2 < len(indices); i += 3 {
			tris = append(tris, Triangle{
				r.store.vertices[indices[i]].Position,
				r.store.vertices[indices[i+1]].Position,
				r.store.vertices[indices[i+2]].Position,
			})
		}
	}
	return tris
}

// Vertices returns a copy of count vertices starting at offset.
func (r *Recorder) Vertices(offset, count int) []surface.Vertex {
	if r.store == nil || offset < 0 || offset+count > len(r.store.vertices) {
		return nil
	}
	return append([]surface.Vertex(nil), r.store.vertices[offset:offset+count]...)
}
