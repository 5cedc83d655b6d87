package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Face is one side of the unit cube the planet is projected from.
type Face int

const (
	PosX Face = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

// Faces lists every cube face.
var Faces = [6]Face{PosX, NegX, PosY, NegY, PosZ, NegZ}

var faceNames = [6]string{"+X", "-X", "+Y", "-Y", "+Z", "-Z"}

func (f Face) String() string {
	if f < 0 || int(f) >= len(faceNames) {
		return "?"
	}
	return faceNames[f]
}

// Axes returns the outward normal and the two unit tangents of the face.
// U x V equals the normal, so grids wound counter-clockwise in (u, v) face
// away from the planet.
func (f Face) Axes() (n, u, v mgl64.Vec3) {
	x := mgl64.Vec3{1, 0, 0}
	y := mgl64.Vec3{0, 1, 0}
	z := mgl64.Vec3{0, 0, 1}
	switch f {
	case PosX:
		return x, y, z
	case NegX:
		return x.Mul(-1), z, y
	case PosY:
		return y, z, x
	case NegY:
		return y.Mul(-1), x, z
	case PosZ:
		return z, x, y
	default:
		return z.Mul(-1), y, x
	}
}

// Bounds returns the face corner and its full edge vectors.
func (f Face) Bounds() (origin, u, v mgl64.Vec3) {
	n, du, dv := f.Axes()
	return n.Sub(du).Sub(dv), du.Mul(2), dv.Mul(2)
}

// horizonMargin widens the horizon cone so faces are kept until they are well
// past it.
const horizonMargin = 0.2

// faceVisible reports whether any of a 3x3 grid of directions on the face is
// above the horizon seen from cam.
func faceVisible(f Face, cam mgl64.Vec3, radius float64) bool {
	dist := cam.Len()
	if dist <= radius {
		return true
	}
	camDir := cam.Mul(1 / dist)
	cosHorizon := radius/dist - horizonMargin

	origin, u, v := f.Bounds()
	for j := 0; j <= 2; j++ {
		for i := 0; i <= 2; i++ {
			p := origin.Add(u.Mul(float64(i) / 2)).Add(v.Mul(float64(j) / 2))
			if p.Normalize().Dot(camDir) > cosHorizon {
				return true
			}
		}
	}
	return false
}

// estimateCentre places a patch that has never been built on the undisplaced
// sphere.
func estimateCentre(origin, u, v mgl64.Vec3, radius float64) mgl64.Vec3 {
	c := origin.Add(u.Mul(0.5)).Add(v.Mul(0.5))
	return c.Normalize().Mul(radius)
}

var infDistance = float32(math.Inf(1))
