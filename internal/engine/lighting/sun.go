// Package lighting holds the directional sun that lights the planet.
package lighting

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Sun is a directional light given in planet-fixed angles.
type Sun struct {
	Azimuth   float64 // degrees around +Y, 0 faces +Z
	Elevation float64 // degrees above the equatorial plane
	Rate      float64 // azimuth degrees per second
}

// DefaultSun returns a sun high over the northern hemisphere.
func DefaultSun() Sun {
	return Sun{Azimuth: 60, Elevation: 30}
}

// Direction returns the unit vector pointing towards the sun.
func (s Sun) Direction() mgl32.Vec3 {
	az := mgl64.DegToRad(s.Azimuth)
	el := mgl64.DegToRad(s.Elevation)
	return mgl32.Vec3{
		float32(math.Cos(el) * math.Sin(az)),
		float32(math.Sin(el)),
		float32(math.Cos(el) * math.Cos(az)),
	}
}

// Advance moves the sun along its orbit by dt seconds.
func (s *Sun) Advance(dt float64) {
	s.Azimuth = math.Mod(s.Azimuth+s.Rate*dt, 360)
	if s.Azimuth < 0 {
		s.Azimuth += 360
	}
}
