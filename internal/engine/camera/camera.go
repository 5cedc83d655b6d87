// Package camera provides the planet orbit camera.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/planetlod/internal/engine/terrain"
)

// PlanetCamera hovers above a planet centred at the origin. Position is kept
// in double precision; only the matrices handed to the GPU are narrowed.
type PlanetCamera struct {
	Radius float64 // reference surface radius

	// Spherical position
	Latitude  float64 // radians, +Y is north
	Longitude float64 // radians
	Altitude  float64 // above Radius

	// View orientation relative to the local horizon
	Heading float64 // radians clockwise from north
	Pitch   float64 // radians from straight down

	// Projection
	FovY float64 // degrees
	Near float64
	Far  float64

	// Constraints
	MinAltitude float64
	MaxAltitude float64
	MaxPitch    float64

	// Sensitivity
	DragSensitivity float64
	ZoomSensitivity float64
	Speed           float64 // altitudes per second
}

// NewPlanetCamera creates a camera looking straight down from altitude.
func NewPlanetCamera(radius, altitude float64) *PlanetCamera {
	return &PlanetCamera{
		Radius:          radius,
		Altitude:        altitude,
		FovY:            60,
		Near:            1,
		Far:             radius * 20,
		MinAltitude:     2,
		MaxAltitude:     radius * 10,
		MaxPitch:        mgl64.DegToRad(80),
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		Speed:           0.5,
	}
}

// Up returns the local vertical.
func (c *PlanetCamera) Up() mgl64.Vec3 {
	cl := math.Cos(c.Latitude)
	return mgl64.Vec3{cl * math.Cos(c.Longitude), math.Sin(c.Latitude), cl * math.Sin(c.Longitude)}
}

// basis returns the local north and east tangents.
func (c *PlanetCamera) basis() (north, east mgl64.Vec3) {
	sl, cl := math.Sin(c.Latitude), math.Cos(c.Latitude)
	so, co := math.Sin(c.Longitude), math.Cos(c.Longitude)
	north = mgl64.Vec3{-sl * co, cl, -sl * so}
	east = mgl64.Vec3{-so, 0, co}
	return north, east
}

// Position returns the camera position relative to the planet centre.
func (c *PlanetCamera) Position() mgl64.Vec3 {
	return c.Up().Mul(c.Radius + c.Altitude)
}

// Direction returns the unit view direction and the view up vector.
func (c *PlanetCamera) Direction() (dir, up mgl64.Vec3) {
	north, east := c.basis()
	forward := north.Mul(math.Cos(c.Heading)).Add(east.Mul(math.Sin(c.Heading)))
	vertical := c.Up()
	sp, cp := math.Sin(c.Pitch), math.Cos(c.Pitch)
	dir = vertical.Mul(-cp).Add(forward.Mul(sp))
	up = forward.Mul(cp).Add(vertical.Mul(sp))
	return dir, up
}

// ViewMatrix returns the view matrix for this camera.
func (c *PlanetCamera) ViewMatrix() mgl32.Mat4 {
	pos := c.Position()
	dir, up := c.Direction()
	return narrow(mgl64.LookAtV(pos, pos.Add(dir), up))
}

// ProjectionMatrix returns the perspective projection for an aspect ratio.
func (c *PlanetCamera) ProjectionMatrix(aspect float64) mgl32.Mat4 {
	return narrow(mgl64.Perspective(mgl64.DegToRad(c.FovY), aspect, c.Near, c.Far))
}

func narrow(m mgl64.Mat4) mgl32.Mat4 {
	var out mgl32.Mat4
	for i := range m {
		out[i] = float32(m[i])
	}
	return out
}

// Snapshot returns what the terrain needs to pick detail for this frame.
func (c *PlanetCamera) Snapshot(viewportHeight int) terrain.Camera {
	return terrain.Camera{
		Position:       c.Position(),
		FovY:           c.FovY,
		Near:           c.Near,
		ViewportHeight: float64(viewportHeight),
	}
}

// HandleDrag turns and tilts the view based on mouse drag delta.
func (c *PlanetCamera) HandleDrag(deltaX, deltaY float64) {
	c.Heading = math.Mod(c.Heading+deltaX*c.DragSensitivity, 2*math.Pi)
	c.Pitch = mgl64.Clamp(c.Pitch-deltaY*c.DragSensitivity, 0, c.MaxPitch)
}

// HandleZoom scales altitude by the scroll wheel delta.
func (c *PlanetCamera) HandleZoom(delta float64) {
	c.Altitude -= delta * c.Altitude * c.ZoomSensitivity
	c.Altitude = mgl64.Clamp(c.Altitude, c.MinAltitude, c.MaxAltitude)
}

// HandleMovement moves over the surface along the heading. Ground speed
// scales with altitude so the view moves at the same rate on screen.
func (c *PlanetCamera) HandleMovement(forward, right, climb, dt float64) {
	dist := c.Speed * c.Altitude * dt
	r := c.Radius + c.Altitude

	sh, ch := math.Sin(c.Heading), math.Cos(c.Heading)
	northward := (forward*ch - right*sh) * dist
	eastward := (forward*sh + right*ch) * dist

	c.Latitude = mgl64.Clamp(c.Latitude+northward/r, -math.Pi/2+0.01, math.Pi/2-0.01)
	c.Longitude += eastward / (r * math.Cos(c.Latitude))

	if climb != 0 {
		c.HandleZoom(-climb * c.Speed * dt / c.ZoomSensitivity)
	}
}
