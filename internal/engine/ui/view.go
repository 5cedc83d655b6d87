package ui

import "github.com/AllenDang/cimgui-go/imgui"

// Interaction is the mouse input a View received this frame.
type Interaction struct {
	Hovered      bool
	DragX, DragY float32
	Wheel        float32
}

// View shows a GL texture rendered upside down, as framebuffers are, and
// tracks mouse drags over it.
type View struct {
	last imgui.Vec2
}

// Image draws texture scaled to size and returns the mouse input over it.
func (v *View) Image(texture uint32, size imgui.Vec2) Interaction {
	ref := imgui.NewTextureRefTextureID(imgui.TextureID(texture))
	imgui.ImageWithBgV(
		*ref,
		size,
		imgui.NewVec2(0, 1),
		imgui.NewVec2(1, 0),
		imgui.NewVec4(0, 0, 0, 1),
		imgui.NewVec4(1, 1, 1, 1),
	)

	var in Interaction
	if !imgui.IsItemHovered() {
		return in
	}
	in.Hovered = true
	pos := imgui.MousePos()
	if imgui.IsMouseDragging(imgui.MouseButtonLeft) {
		in.DragX = pos.X - v.last.X
		in.DragY = pos.Y - v.last.Y
	}
	v.last = pos
	in.Wheel = imgui.CurrentIO().MouseWheel()
	return in
}
