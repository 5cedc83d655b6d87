package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DetailFactor converts a geometric error into the camera distance below which
// it projects to more than pixelError pixels.
func DetailFactor(cam Camera, pixelError float64) float64 {
	top := math.Tan(mgl64.DegToRad(cam.FovY)/2) * cam.Near
	a := cam.Near / top
	t := 2 * pixelError / cam.ViewportHeight
	return a / t
}

// IncreaseDetailDistance returns the distance below which a patch with the
// given error should be refined.
func IncreaseDetailDistance(err float32, factor float64) float32 {
	return float32(float64(err) * factor)
}

// distance is computed in double precision and narrowed once.
func distance(cam, centre mgl64.Vec3) float32 {
	return float32(cam.Sub(centre).Len())
}
