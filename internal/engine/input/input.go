// Package input turns SDL events into per-frame viewer input: held keys,
// mouse drag deltas and wheel steps.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// Input accumulates the state of one frame.
type Input struct {
	held    map[sdl.Scancode]bool
	pressed map[sdl.Scancode]bool

	dragging      bool
	dragX, dragY  float64
	wheel         float64
	resized       bool
	width, height int
}

// New creates an input handler.
func New() *Input {
	return &Input{
		held:    make(map[sdl.Scancode]bool),
		pressed: make(map[sdl.Scancode]bool),
	}
}

// Update polls pending SDL events. It returns true when the user asked to quit.
func (i *Input) Update() bool {
	i.dragX, i.dragY, i.wheel = 0, 0, 0
	i.resized = false
	clear(i.pressed)

	quit := false
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if i.handle(event) {
			quit = true
		}
	}
	return quit
}

func (i *Input) handle(event sdl.Event) bool {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return true

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			i.resized = true
			i.width, i.height = int(e.Data1), int(e.Data2)
		}

	case *sdl.KeyboardEvent:
		code := e.Keysym.Scancode
		switch e.Type {
		case sdl.KEYDOWN:
			if e.Repeat == 0 {
				i.pressed[code] = true
			}
			i.held[code] = true
		case sdl.KEYUP:
			delete(i.held, code)
		}
		return code == sdl.SCANCODE_ESCAPE && e.Type == sdl.KEYDOWN

	case *sdl.MouseButtonEvent:
		if e.Button == sdl.BUTTON_LEFT {
			i.dragging = e.Type == sdl.MOUSEBUTTONDOWN
		}

	case *sdl.MouseMotionEvent:
		if i.dragging {
			i.dragX += float64(e.XRel)
			i.dragY += float64(e.YRel)
		}

	case *sdl.MouseWheelEvent:
		i.wheel += float64(e.Y)
	}
	return false
}

// Held reports whether a key is down.
func (i *Input) Held(code sdl.Scancode) bool {
	return i.held[code]
}

// Pressed reports whether a key went down this frame.
func (i *Input) Pressed(code sdl.Scancode) bool {
	return i.pressed[code]
}

// Axis returns +1, -1 or 0 from a pair of keys.
func (i *Input) Axis(positive, negative sdl.Scancode) float64 {
	var v float64
	if i.held[positive] {
		v++
	}
	if i.held[negative] {
		v--
	}
	return v
}

// Drag returns the mouse movement with the left button held this frame.
func (i *Input) Drag() (dx, dy float64) {
	return i.dragX, i.dragY
}

// Wheel returns the wheel steps of this frame.
func (i *Input) Wheel() float64 {
	return i.wheel
}

// Resized returns the new window size if it changed this frame.
func (i *Input) Resized() (width, height int, ok bool) {
	return i.width, i.height, i.resized
}
