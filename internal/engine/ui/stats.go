package ui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/Faultbox/planetlod/internal/engine/terrain"
)

var (
	colourOK   = imgui.NewVec4(0.4, 0.8, 0.4, 1)
	colourWarn = imgui.NewVec4(0.9, 0.6, 0.2, 1)
)

// TerrainStats draws a terrain statistics section.
func TerrainStats(s terrain.Stats) {
	if imgui.TreeNodeExStrV("Detail", imgui.TreeNodeFlagsDefaultOpen) {
		imgui.Text(fmt.Sprintf("Mode: %s", s.Mode))
		imgui.Text(fmt.Sprintf("Patches drawn: %d of %d", s.Patches, s.Nodes))
		imgui.Text(fmt.Sprintf("Triangles: %d", s.Triangles))
		imgui.Text(fmt.Sprintf("Finest level: %d", s.FinestLevel))
		imgui.Text(fmt.Sprintf("Visible faces: %d / 6", s.VisibleFaces))
		imgui.TreePop()
	}

	if imgui.TreeNodeExStrV("Vertex pool", imgui.TreeNodeFlagsDefaultOpen) {
		p := s.Pool
		used := 0.0
		if p.Capacity > 0 {
			used = 100 * float64(p.Used) / float64(p.Capacity)
		}
		imgui.Text(fmt.Sprintf("Used: %d / %d vertices (%.1f%%)", p.Used, p.Capacity, used))
		imgui.Text(fmt.Sprintf("Free blocks: %d / %d", p.FreeBlocks, p.Blocks))
		if s.Deferred > 0 {
			imgui.TextColored(colourWarn, fmt.Sprintf("Deferred changes: %d", s.Deferred))
		} else {
			imgui.TextColored(colourOK, "Deferred changes: 0")
		}
		imgui.TreePop()
	}

	if imgui.TreeNodeExStrV("Build queue", imgui.TreeNodeFlagsDefaultOpen) {
		q := s.Queue
		imgui.Text(fmt.Sprintf("Waiting: %d  In flight: %d  Completed: %d", q.Depth, q.InFlight, q.Completed))
		imgui.Text(fmt.Sprintf("Submitted: %d  Applied: %d", q.Submitted, q.Applied))
		if q.Failed > 0 {
			imgui.TextColored(colourWarn, fmt.Sprintf("Failed: %d", q.Failed))
		}
		imgui.Text(fmt.Sprintf("Result buffers: %d (%d in use)", q.Buffers, q.CheckedOut))
		imgui.TreePop()
	}
}
